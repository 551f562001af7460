package middleware

import (
	"net/http"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
)

// BlockMethods answers 405 for the given verbs before any route runs.
func BlockMethods(m *metrics.Metrics, methods ...string) func(http.Handler) http.Handler {
	blocked := make(map[string]struct{}, len(methods))
	for _, method := range methods {
		blocked[method] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := blocked[r.Method]; ok {
				m.Rejected(metrics.GateMethod)
				WriteError(w, http.StatusMethodNotAllowed, domain.MsgMethodNotAllowed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
