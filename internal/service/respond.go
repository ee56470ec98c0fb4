package service

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/expenseshare/server/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondError maps the error taxonomy to HTTP status codes. Unclassified
// errors become opaque 500s so internals never leak to clients.
func respondError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		slog.Error("internal error", "error", err)
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch kind {
	case apperr.Validation:
		respondMessage(w, http.StatusBadRequest, apperr.Message(err))
	case apperr.Authorization:
		respondMessage(w, http.StatusForbidden, apperr.Message(err))
	case apperr.Conflict:
		respondMessage(w, http.StatusConflict, apperr.Message(err))
	case apperr.NotFound:
		respondMessage(w, http.StatusNotFound, apperr.Message(err))
	default:
		slog.Error("internal error", "error", err)
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
