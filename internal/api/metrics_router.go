package api

import (
	"net/http"

	"github.com/bcnelson/tareas-api/internal/api/handler"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// NewMetricsRouter serves Prometheus metrics and the rate limiter counters.
// It carries none of the public gates and belongs on a private listener.
func NewMetricsRouter(m *metrics.Metrics, stats *ratelimit.MemoryStats) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	if stats != nil {
		r.Get("/debug/ratelimit", handler.NewStatsHandler(stats).RateLimit)
	}
	return r
}
