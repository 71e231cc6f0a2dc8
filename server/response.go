package server

import (
	"encoding/json"
	"net/http"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
)

// ErrorResponse is the JSON body for failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("writing response", logger.FieldError, err)
	}
}

// writeError maps domain errors to status codes. Internal error detail
// stays in the log, not the response.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNoSnapshot), errors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, errors.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		logger.Errorw("request failed", logger.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
