package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bcnelson/tareas-api/internal/api/middleware"
	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/validation"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	middleware.WriteError(w, status, message)
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.MsgTaskNotFound)
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, domain.MsgDuplicateTitle)
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, domain.MsgInvalidBody)
	default:
		respondError(w, http.StatusInternalServerError, domain.MsgInternalError)
	}
}

// decodeOptionalJSON decodes JSON from the request body. An empty body leaves
// v at its zero value.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return domain.ErrInvalidInput
	}
}
