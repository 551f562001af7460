package handler

import (
	"net/http"

	"github.com/bcnelson/tareas-api/internal/ratelimit"
)

// StatsHandler serves the in-process rate limiter counters.
type StatsHandler struct {
	stats *ratelimit.MemoryStats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *ratelimit.MemoryStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RateLimit returns totals plus per-route and per-client counters.
func (h *StatsHandler) RateLimit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Snapshot())
}
