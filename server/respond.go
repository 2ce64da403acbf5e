package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"MusicPro/core/auth"
	"MusicPro/logger"
	"MusicPro/repository"
)

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// writeError emits the {ok:false, error} envelope every API failure uses.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// writeServiceError maps domain errors onto the HTTP taxonomy. Unknown
// errors become an opaque 500; internals and secrets never reach the
// client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "duplicate filename")
	case errors.Is(err, repository.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		logger.Error("request failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
