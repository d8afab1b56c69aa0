package server

import (
	"net/http"

	"davsync/internal/worker"
)

// WorkerHandler reports the worker loop's state for the administrative UI.
type WorkerHandler struct {
	worker *worker.Worker
}

// NewWorkerHandler creates a WorkerHandler for the given worker.
func NewWorkerHandler(w *worker.Worker) *WorkerHandler {
	return &WorkerHandler{worker: w}
}

// Routes returns the HTTP routes this handler serves.
func (h *WorkerHandler) Routes() []string {
	return []string{"GET /api/worker/status"}
}

// ServeHTTP writes the worker status.
func (h *WorkerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.worker.Status())
}
