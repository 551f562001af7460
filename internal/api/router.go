package api

import (
	"log"
	"net/http"

	"github.com/bcnelson/tareas-api/internal/api/handler"
	"github.com/bcnelson/tareas-api/internal/api/middleware"
	"github.com/bcnelson/tareas-api/internal/config"
	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps carries the collaborators of the router. Nil optional fields fall
// back to defaults.
type Deps struct {
	Store   storage.TaskStore
	Limiter *ratelimit.SlidingWindow
	Stats   ratelimit.StatsRecorder
	Metrics *metrics.Metrics
	Clock   ratelimit.Clock
	Logger  *log.Logger
}

// NewRouter creates a new HTTP router with all routes configured.
//
// Requests pass origin gate, API key gate, logger, rate limiter and method
// blocklist, in that order, before reaching a route. The first stage to
// reject answers the request.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	if deps.Clock == nil {
		deps.Clock = ratelimit.SystemClock
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window,
			ratelimit.WithClock(deps.Clock))
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Origin(cfg.Gate.AllowedAddrs, cfg.Gate.TrustedPort, deps.Metrics))
	r.Use(middleware.APIKey(cfg.Gate.APIKey, deps.Metrics))
	r.Use(middleware.Logging(deps.Logger, deps.Clock, deps.Metrics))
	r.Use(middleware.RateLimit(middleware.RateLimitOptions{
		Limiter: deps.Limiter,
		Stats:   deps.Stats,
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
		Headers: cfg.RateLimit.Headers,
	}))
	r.Use(middleware.BlockMethods(deps.Metrics, http.MethodPatch, http.MethodOptions))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, domain.MsgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, domain.MsgMethodNotAllowed)
	})

	taskHandler := handler.NewTaskHandler(deps.Store, deps.Metrics)
	r.Get("/", taskHandler.Index)

	r.Route("/tareas", func(r chi.Router) {
		r.Get("/", taskHandler.List)
		r.Post("/", taskHandler.Create)
		// Static segment wins over {id} in chi's tree.
		r.Delete("/completed", taskHandler.DeleteCompleted)
		r.Put("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	return r
}
