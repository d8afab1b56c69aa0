package server

import (
	"fmt"
	"net/http"

	"davsync/internal/models"
	"davsync/internal/repositories"
	"davsync/internal/shared"
)

// serverPayload is the request body for creating or updating a server.
type serverPayload struct {
	Name          *string `json:"name"`
	URL           *string `json:"url"`
	PrincipalPath *string `json:"principal_path"`
	Description   *string `json:"description"`
	ServerType    *string `json:"server_type"`
	VerifySSL     *bool   `json:"verify_ssl"`
}

// ServersHandler exposes CRUD operations over server configurations.
type ServersHandler struct {
	repo *repositories.ServerRepository
}

// NewServersHandler creates a ServersHandler over the given repository.
func NewServersHandler(repo *repositories.ServerRepository) *ServersHandler {
	return &ServersHandler{repo: repo}
}

// Routes returns the HTTP routes this handler serves.
func (h *ServersHandler) Routes() []string {
	return []string{
		"GET /api/servers",
		"POST /api/servers",
		"GET /api/servers/{id}",
		"PUT /api/servers/{id}",
		"DELETE /api/servers/{id}",
	}
}

// ServeHTTP dispatches on method and path.
func (h *ServersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

func (h *ServersHandler) list(w http.ResponseWriter, r *http.Request) {
	servers, err := h.repo.List(map[string]any{
		"server_type": r.URL.Query().Get("server_type"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(servers))
	for _, s := range servers {
		out = append(out, s.ToMap())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ServersHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload serverPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if payload.Name == nil || payload.URL == nil {
		respondError(w, fmt.Errorf("%w: name and url are required", shared.ErrInvalidInput))
		return
	}

	server := models.NewServer(0, *payload.Name, *payload.URL)
	applyServerPayload(server, payload)

	if err := h.repo.Create(server); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, server.ToMap())
}

func (h *ServersHandler) get(w http.ResponseWriter, id string) {
	server, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, server.ToMap())
}

func (h *ServersHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	server, err := h.repo.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload serverPayload
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	if payload.Name != nil {
		server.SetName(*payload.Name)
	}
	if payload.URL != nil {
		server.SetURL(*payload.URL)
	}
	applyServerPayload(server, payload)

	if err := h.repo.Update(server); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, server.ToMap())
}

func (h *ServersHandler) delete(w http.ResponseWriter, id string) {
	if err := h.repo.Delete(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// applyServerPayload copies the optional fields shared by create and update.
func applyServerPayload(server *models.Server, payload serverPayload) {
	if payload.PrincipalPath != nil {
		server.SetPrincipalPath(*payload.PrincipalPath)
	}
	if payload.Description != nil {
		server.SetDescription(*payload.Description)
	}
	if payload.ServerType != nil {
		server.SetServerType(*payload.ServerType)
	}
	if payload.VerifySSL != nil {
		server.SetVerifySSL(*payload.VerifySSL)
	}
}
