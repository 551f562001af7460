package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/bcnelson/tareas-api/internal/domain"
)

// WriteError writes {"error": message} with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&domain.APIError{Error: message})
}
