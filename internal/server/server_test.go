package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"davsync/internal/models"
	"davsync/internal/repositories"
	"davsync/internal/shared"
	"davsync/internal/worker"
)

// testEnv wires the full administrative API over an in-memory database.
// The worker loop is never started, so queued jobs stay queued.
type testEnv struct {
	router   *BasicRouter
	db       *sql.DB
	servers  *repositories.ServerRepository
	accounts *repositories.AccountRepository
	jobs     *repositories.JobRepository
	worker   *worker.Worker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	serverRepo := repositories.NewServerRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	w := worker.NewWorker(jobRepo, repositories.NewClientDialer(db), shared.NewLogger(&bytes.Buffer{}), 5.0)

	router := NewBasicRouter()
	router.Handler(NewServersHandler(serverRepo))
	router.Handler(NewAccountsHandler(accountRepo, serverRepo))
	router.Handler(NewJobsHandler(jobRepo, accountRepo, w))
	router.Handler(NewWorkerHandler(w))

	return &testEnv{
		router:   router,
		db:       db,
		servers:  serverRepo,
		accounts: accountRepo,
		jobs:     jobRepo,
		worker:   w,
	}
}

// do performs a request against the router and decodes the JSON response.
func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

// doList performs a request expecting a JSON array response.
func (e *testEnv) doList(t *testing.T, method, path string) (int, []map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out []map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (e *testEnv) createServer(t *testing.T, name string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/servers", map[string]any{
		"name":        name,
		"url":         "https://" + name + ".example.com",
		"server_type": "Nextcloud",
	})
	if status != http.StatusCreated {
		t.Fatalf("failed to create server: status %d, body %v", status, body)
	}
	return body["id"].(string)
}

func (e *testEnv) createAccount(t *testing.T, name, serverID string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name":      name,
		"server_id": serverID,
		"username":  name,
		"password":  "secret",
	})
	if status != http.StatusCreated {
		t.Fatalf("failed to create account: status %d, body %v", status, body)
	}
	return body["id"].(string)
}

func (e *testEnv) createJob(t *testing.T, name, sourceID, destinationID string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"name":           name,
		"source_id":      sourceID,
		"destination_id": destinationID,
	})
	if status != http.StatusCreated {
		t.Fatalf("failed to create job: status %d, body %v", status, body)
	}
	return body["id"].(string)
}

func TestServersAPI(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		env := newTestEnv(t)

		status, body := env.do(t, http.MethodPost, "/api/servers", map[string]any{
			"name":           "Carbonio Prod",
			"url":            "https://mail.example.com",
			"server_type":    "Carbonio",
			"principal_path": "/dav/{username}",
		})
		if status != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %v", status, body)
		}
		if body["verify_ssl"] != true {
			t.Error("SSL verification should default to enabled")
		}

		id := body["id"].(string)
		status, body = env.do(t, http.MethodGet, "/api/servers/"+id, nil)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if body["name"] != "Carbonio Prod" || body["server_type"] != "Carbonio" {
			t.Errorf("unexpected server: %v", body)
		}
	})

	t.Run("create requires name and url", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/servers", map[string]any{"name": "incomplete"})
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})

	t.Run("invalid url is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/servers", map[string]any{
			"name": "bad", "url": "not-a-url",
		})
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})

	t.Run("list filters by server type", func(t *testing.T) {
		env := newTestEnv(t)
		env.createServer(t, "nc1")
		env.do(t, http.MethodPost, "/api/servers", map[string]any{
			"name": "zm1", "url": "https://zm1.example.com", "server_type": "Zimbra",
		})

		status, list := env.doList(t, http.MethodGet, "/api/servers?server_type=Zimbra")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 1 || list[0]["name"] != "zm1" {
			t.Errorf("unexpected filter result: %v", list)
		}
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createServer(t, "nc1")

		status, body := env.do(t, http.MethodPut, "/api/servers/"+id, map[string]any{
			"name": "renamed",
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["name"] != "renamed" {
			t.Errorf("name not updated: %v", body)
		}
		if body["url"] != "https://nc1.example.com" {
			t.Errorf("url should be untouched: %v", body)
		}
	})

	t.Run("delete then get returns 404", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createServer(t, "nc1")

		status, _ := env.do(t, http.MethodDelete, "/api/servers/"+id, nil)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		status, _ = env.do(t, http.MethodGet, "/api/servers/"+id, nil)
		if status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})

	t.Run("missing server returns 404", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodGet, "/api/servers/nope", nil)
		if status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
	})
}

func TestAccountsAPI(t *testing.T) {
	t.Run("create never echoes the password", func(t *testing.T) {
		env := newTestEnv(t)
		serverID := env.createServer(t, "nc1")

		status, body := env.do(t, http.MethodPost, "/api/accounts", map[string]any{
			"name":      "alice@nc1",
			"server_id": serverID,
			"username":  "alice",
			"password":  "secret",
		})
		if status != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %v", status, body)
		}
		if _, ok := body["password"]; ok {
			t.Error("password must not appear in the response")
		}
		if body["username"] != "alice" {
			t.Errorf("unexpected username: %v", body["username"])
		}
	})

	t.Run("create requires an existing server", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/accounts", map[string]any{
			"name": "alice", "server_id": "nope", "username": "alice", "password": "secret",
		})
		if status != http.StatusNotFound {
			t.Errorf("expected 404 for unknown server, got %d", status)
		}
	})

	t.Run("empty password on update keeps the stored one", func(t *testing.T) {
		env := newTestEnv(t)
		serverID := env.createServer(t, "nc1")
		id := env.createAccount(t, "alice", serverID)

		status, _ := env.do(t, http.MethodPut, "/api/accounts/"+id, map[string]any{
			"name":     "alice renamed",
			"password": "",
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}

		account, err := env.accounts.Get(id)
		if err != nil {
			t.Fatalf("failed to load account: %v", err)
		}
		if account.Password() != "secret" {
			t.Errorf("password should be unchanged, got: %q", account.Password())
		}
		if account.Name() != "alice renamed" {
			t.Errorf("name not updated: %q", account.Name())
		}
	})

	t.Run("list filters by server", func(t *testing.T) {
		env := newTestEnv(t)
		nc := env.createServer(t, "nc1")
		zm := env.createServer(t, "zm1")
		env.createAccount(t, "alice", nc)
		env.createAccount(t, "bob", zm)

		status, list := env.doList(t, http.MethodGet, "/api/accounts?server_id="+nc)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 1 || list[0]["name"] != "alice" {
			t.Errorf("unexpected filter result: %v", list)
		}
	})
}

func TestJobsAPI(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, string) {
		t.Helper()
		env := newTestEnv(t)
		serverID := env.createServer(t, "nc1")
		src := env.createAccount(t, "alice", serverID)
		dst := env.createAccount(t, "bob", serverID)
		return env, env.createJob(t, "migrate alice", src, dst)
	}

	t.Run("create starts pending with full defaults", func(t *testing.T) {
		env, jobID := setup(t)

		status, body := env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if body["status"] != "pending" {
			t.Errorf("unexpected status: %v", body["status"])
		}
		if body["migrate_calendars"] != true || body["migrate_contacts"] != true {
			t.Error("both kinds should be enabled by default")
		}
		if body["progress"] != float64(0) {
			t.Errorf("unexpected progress: %v", body["progress"])
		}
	})

	t.Run("create requires existing accounts", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/jobs", map[string]any{
			"name": "broken", "source_id": "nope", "destination_id": "also-nope",
		})
		if status != http.StatusNotFound {
			t.Errorf("expected 404 for unknown accounts, got %d", status)
		}
	})

	t.Run("start queues the job", func(t *testing.T) {
		env, jobID := setup(t)

		status, body := env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/start", map[string]any{
			"mode": "full",
		})
		if status != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %v", status, body)
		}
		if body["status"] != "queued" {
			t.Errorf("unexpected status: %v", body["status"])
		}

		job, err := env.jobs.Get(jobID)
		if err != nil {
			t.Fatalf("failed to load job: %v", err)
		}
		if job.Status() != models.StatusQueued {
			t.Errorf("expected queued in storage, got %q", job.Status())
		}
	})

	t.Run("start twice returns a conflict", func(t *testing.T) {
		env, jobID := setup(t)

		status, _ := env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/start", nil)
		if status != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", status)
		}
		status, _ = env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/start", nil)
		if status != http.StatusConflict {
			t.Errorf("expected 409 on second start, got %d", status)
		}
	})

	t.Run("start rejects an unknown mode", func(t *testing.T) {
		env, jobID := setup(t)
		status, _ := env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/start", map[string]any{
			"mode": "sideways",
		})
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})

	t.Run("pause without a running job returns a conflict", func(t *testing.T) {
		env, jobID := setup(t)
		for _, action := range []string{"pause", "resume", "cancel"} {
			status, _ := env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/"+action, nil)
			if status != http.StatusConflict {
				t.Errorf("expected 409 for %s, got %d", action, status)
			}
		}
	})

	t.Run("non-terminal jobs cannot be edited or deleted", func(t *testing.T) {
		env, jobID := setup(t)
		if err := env.jobs.UpdateStatus(jobID, models.StatusRunning, 40, ""); err != nil {
			t.Fatalf("failed to mark running: %v", err)
		}

		status, _ := env.do(t, http.MethodPut, "/api/jobs/"+jobID, map[string]any{"name": "renamed"})
		if status != http.StatusBadRequest {
			t.Errorf("expected 400 on edit, got %d", status)
		}
		status, _ = env.do(t, http.MethodDelete, "/api/jobs/"+jobID, nil)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400 on delete, got %d", status)
		}
	})

	t.Run("terminal jobs can be deleted", func(t *testing.T) {
		env, jobID := setup(t)
		if err := env.jobs.UpdateStatus(jobID, models.StatusCompleted, 100, ""); err != nil {
			t.Fatalf("failed to mark completed: %v", err)
		}

		status, _ := env.do(t, http.MethodDelete, "/api/jobs/"+jobID, nil)
		if status != http.StatusOK {
			t.Errorf("expected 200, got %d", status)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		env, jobID := setup(t)
		if err := env.jobs.UpdateStatus(jobID, models.StatusCompleted, 100, ""); err != nil {
			t.Fatalf("failed to mark completed: %v", err)
		}

		status, list := env.doList(t, http.MethodGet, "/api/jobs?status=completed")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 completed job, got %d", len(list))
		}

		status, list = env.doList(t, http.MethodGet, "/api/jobs?status=failed")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 0 {
			t.Errorf("expected no failed jobs, got %d", len(list))
		}
	})

	t.Run("logs listing", func(t *testing.T) {
		env, jobID := setup(t)
		for _, msg := range []string{"Starting migration", "Connected to source", "Done"} {
			if err := env.jobs.AppendLog(jobID, models.LogInfo, msg); err != nil {
				t.Fatalf("failed to append log: %v", err)
			}
		}

		status, list := env.doList(t, http.MethodGet, "/api/jobs/"+jobID+"/logs")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(list))
		}
		if list[0]["message"] != "Starting migration" {
			t.Errorf("unexpected first entry: %v", list[0])
		}

		status, list = env.doList(t, http.MethodGet, "/api/jobs/"+jobID+"/logs?limit=1")
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 entry with limit, got %d", len(list))
		}
	})

	t.Run("logs rejects a bad limit", func(t *testing.T) {
		env, jobID := setup(t)
		status, _ := env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/logs?limit=banana", nil)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})
}

func TestWorkerStatusAPI(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/worker/status", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["state"] != "idle" {
		t.Errorf("expected idle worker, got: %v", body["state"])
	}
	if body["paused"] != false {
		t.Errorf("expected unpaused worker, got: %v", body["paused"])
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("logging records each request", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)

		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		out := buf.String()
		if !strings.Contains(out, "/ping") || !strings.Contains(out, "418") {
			t.Errorf("expected method, path and status in log output, got: %s", out)
		}
	})

	t.Run("json content type", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(JSONContentType())
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type: %q", got)
		}
	})

	t.Run("middleware applies in registration order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("outer"), tag("inner"))
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})
}
