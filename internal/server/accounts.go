package server

import (
	"fmt"
	"net/http"

	"davsync/internal/models"
	"davsync/internal/repositories"
	"davsync/internal/shared"
)

// accountPayload is the request body for creating or updating an account.
// The password is accepted on input but never echoed back.
type accountPayload struct {
	Name     *string `json:"name"`
	ServerID *string `json:"server_id"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// AccountsHandler exposes CRUD operations over accounts.
type AccountsHandler struct {
	repo    *repositories.AccountRepository
	servers *repositories.ServerRepository
}

// NewAccountsHandler creates an AccountsHandler over the given repositories.
func NewAccountsHandler(repo *repositories.AccountRepository, servers *repositories.ServerRepository) *AccountsHandler {
	return &AccountsHandler{repo: repo, servers: servers}
}

// Routes returns the HTTP routes this handler serves.
func (h *AccountsHandler) Routes() []string {
	return []string{
		"GET /api/accounts",
		"POST /api/accounts",
		"GET /api/accounts/{id}",
		"PUT /api/accounts/{id}",
		"DELETE /api/accounts/{id}",
	}
}

// ServeHTTP dispatches on method and path.
func (h *AccountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch {
	case r.Method == http.MethodGet && id == "":
		h.list(w, r)
	case r.Method == http.MethodPost:
		h.create(w, r)
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

func (h *AccountsHandler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(map[string]any{
		"server_id": r.URL.Query().Get("server_id"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ToMap())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *AccountsHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload accountPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if payload.Name == nil || payload.ServerID == nil || payload.Username == nil || payload.Password == nil {
		respondError(w, fmt.Errorf("%w: name, server_id, username and password are required", shared.ErrInvalidInput))
		return
	}

	// The server must exist before an account can reference it.
	if _, err := h.servers.Get(*payload.ServerID); err != nil {
		respondError(w, err)
		return
	}

	account := models.NewAccount(0, *payload.Name, *payload.ServerID, *payload.Username, *payload.Password)
	if err := h.repo.Create(account); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account.ToMap())
}

func (h *AccountsHandler) get(w http.ResponseWriter, id string) {
	account, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account.ToMap())
}

func (h *AccountsHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	account, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload accountPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	if payload.Name != nil {
		account.SetName(*payload.Name)
	}
	if payload.ServerID != nil {
		if _, err := h.servers.Get(*payload.ServerID); err != nil {
			respondError(w, err)
			return
		}
		account.SetServerID(*payload.ServerID)
	}
	if payload.Username != nil {
		account.SetUsername(*payload.Username)
	}
	if payload.Password != nil && *payload.Password != "" {
		account.SetPassword(*payload.Password)
	}

	if err := h.repo.Update(account); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account.ToMap())
}

func (h *AccountsHandler) delete(w http.ResponseWriter, id string) {
	if err := h.repo.Delete(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
