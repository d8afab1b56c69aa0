package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"davsync/internal/shared"
)

// respondJSON writes v as the JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors onto HTTP statuses and writes a JSON error body.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrDuplicate),
		errors.Is(err, shared.ErrWorkerBusy),
		errors.Is(err, shared.ErrJobNotRunning):
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// decodeBody reads the request body into v. An empty body is not an error;
// callers validate required fields themselves.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
