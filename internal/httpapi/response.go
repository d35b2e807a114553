package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/jobs"
	"github.com/forPelevin/vodclips/internal/logging"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, errorBody{Error: message}, logger)
}

// writeLookupError maps store and artifact errors onto a status code.
func (s *Server) writeLookupError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, failure.ErrMissingArtifact), errors.Is(err, jobs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: what + " not found", Kind: failure.KindOf(err)}, s.logger)
	case errors.Is(err, failure.ErrInvalidArtifact):
		s.logger.Warn("invalid artifact", slog.String("what", what), logging.Error(err))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: failure.KindInvalidArtifact}, s.logger)
	default:
		s.logger.Error("lookup failed", slog.String("what", what), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read "+what, s.logger)
	}
}
