package server

import (
	"fmt"
	"net/http"
	"strconv"

	"davsync/internal/models"
	"davsync/internal/repositories"
	"davsync/internal/shared"
	"davsync/internal/worker"
)

// jobPayload is the request body for creating or updating a job.
type jobPayload struct {
	Name              *string `json:"name"`
	SourceID          *string `json:"source_id"`
	DestinationID     *string `json:"destination_id"`
	MigrateCalendars  *bool   `json:"migrate_calendars"`
	MigrateContacts   *bool   `json:"migrate_contacts"`
	CreateCollections *bool   `json:"create_collections"`
	DryRun            *bool   `json:"dry_run"`
	SkipDummyEvents   *bool   `json:"skip_dummy_events"`
}

// startPayload is the request body for starting a job run.
type startPayload struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dry_run"`
}

// JobsHandler exposes job CRUD plus the run control endpoints
// (start, pause, resume, cancel) and the job log listing.
type JobsHandler struct {
	repo     *repositories.JobRepository
	accounts *repositories.AccountRepository
	worker   *worker.Worker
}

// NewJobsHandler creates a JobsHandler over the given repositories and worker.
func NewJobsHandler(repo *repositories.JobRepository, accounts *repositories.AccountRepository, w *worker.Worker) *JobsHandler {
	return &JobsHandler{repo: repo, accounts: accounts, worker: w}
}

// Routes returns the HTTP routes this handler serves.
func (h *JobsHandler) Routes() []string {
	return []string{
		"GET /api/jobs",
		"POST /api/jobs",
		"GET /api/jobs/{id}",
		"PUT /api/jobs/{id}",
		"DELETE /api/jobs/{id}",
		"POST /api/jobs/{id}/start",
		"POST /api/jobs/{id}/pause",
		"POST /api/jobs/{id}/resume",
		"POST /api/jobs/{id}/cancel",
		"GET /api/jobs/{id}/logs",
	}
}

// ServeHTTP dispatches on method, path and action suffix.
func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := actionSuffix(r.URL.Path, id)

	switch {
	case r.Method == http.MethodGet && id == "":
		h.list(w, r)
	case r.Method == http.MethodPost && id == "":
		h.create(w, r)
	case r.Method == http.MethodGet && action == "logs":
		h.logs(w, r, id)
	case r.Method == http.MethodPost && action == "start":
		h.start(w, r, id)
	case r.Method == http.MethodPost && action == "pause":
		h.control(w, id, h.worker.RequestPause, models.StatusPaused)
	case r.Method == http.MethodPost && action == "resume":
		h.control(w, id, h.worker.RequestResume, models.StatusRunning)
	case r.Method == http.MethodPost && action == "cancel":
		h.cancel(w, id)
	case r.Method == http.MethodGet:
		h.get(w, id)
	case r.Method == http.MethodPut:
		h.update(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// actionSuffix extracts the trailing action segment of a job route, if any.
func actionSuffix(path, id string) string {
	if id == "" {
		return ""
	}
	prefix := "/api/jobs/" + id + "/"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):]
	}
	return ""
}

func (h *JobsHandler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.repo.List(map[string]any{
		"status":     r.URL.Query().Get("status"),
		"account_id": r.URL.Query().Get("account_id"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ToMap())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *JobsHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if payload.Name == nil || payload.SourceID == nil || payload.DestinationID == nil {
		respondError(w, fmt.Errorf("%w: name, source_id and destination_id are required", shared.ErrInvalidInput))
		return
	}

	// Both accounts must exist before a job can link them.
	if _, err := h.accounts.Get(*payload.SourceID); err != nil {
		respondError(w, err)
		return
	}
	if _, err := h.accounts.Get(*payload.DestinationID); err != nil {
		respondError(w, err)
		return
	}

	job := models.NewSyncJob(0, *payload.Name, *payload.SourceID, *payload.DestinationID)
	applyJobPayload(job, payload)

	if err := h.repo.Create(job); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, job.ToMap())
}

func (h *JobsHandler) get(w http.ResponseWriter, id string) {
	job, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job.ToMap())
}

func (h *JobsHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !job.Status().Terminal() {
		respondError(w, fmt.Errorf("%w: job is %s and cannot be edited", shared.ErrInvalidInput, job.Status()))
		return
	}

	var payload jobPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	if payload.Name != nil {
		job.SetName(*payload.Name)
	}
	if payload.SourceID != nil {
		job.SetSourceID(*payload.SourceID)
	}
	if payload.DestinationID != nil {
		job.SetDestinationID(*payload.DestinationID)
	}
	applyJobPayload(job, payload)

	if err := h.repo.Update(job); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job.ToMap())
}

func (h *JobsHandler) delete(w http.ResponseWriter, id string) {
	job, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !job.Status().Terminal() {
		respondError(w, fmt.Errorf("%w: job is %s and cannot be deleted", shared.ErrInvalidInput, job.Status()))
		return
	}

	if err := h.repo.Delete(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *JobsHandler) start(w http.ResponseWriter, r *http.Request, id string) {
	var payload startPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	mode, err := worker.ParseMode(payload.Mode)
	if err != nil {
		respondError(w, err)
		return
	}

	job, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !job.Status().CanQueue() {
		respondError(w, fmt.Errorf("%w (current: %s)", shared.ErrWorkerBusy, id))
		return
	}

	if err := h.worker.Enqueue(id, mode, payload.DryRun); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{
		"id":      id,
		"status":  string(models.StatusQueued),
		"mode":    string(mode),
		"dry_run": payload.DryRun || job.DryRun(),
	})
}

// control relays a pause or resume request to the worker.
func (h *JobsHandler) control(w http.ResponseWriter, id string, request func(string) error, status models.JobStatus) {
	if err := request(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": string(status)})
}

func (h *JobsHandler) cancel(w http.ResponseWriter, id string) {
	if err := h.worker.RequestCancel(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": "cancelling"})
}

func (h *JobsHandler) logs(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.repo.Get(id); err != nil {
		respondError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, fmt.Errorf("%w: invalid limit %q", shared.ErrInvalidInput, raw))
			return
		}
		limit = n
	}

	entries, err := h.repo.Logs(id, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToMap())
	}
	respondJSON(w, http.StatusOK, out)
}

// applyJobPayload copies the optional flags shared by create and update.
func applyJobPayload(job *models.SyncJob, payload jobPayload) {
	if payload.MigrateCalendars != nil {
		job.SetMigrateCalendars(*payload.MigrateCalendars)
	}
	if payload.MigrateContacts != nil {
		job.SetMigrateContacts(*payload.MigrateContacts)
	}
	if payload.CreateCollections != nil {
		job.SetCreateCollections(*payload.CreateCollections)
	}
	if payload.DryRun != nil {
		job.SetDryRun(*payload.DryRun)
	}
	if payload.SkipDummyEvents != nil {
		job.SetSkipDummyEvents(*payload.SkipDummyEvents)
	}
}
