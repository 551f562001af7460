package middleware

import (
	"log"
	"net/http"

	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-Id"

// LogTimeLayout formats the request timestamp, e.g. 2025-08-29 21:15:33.
const LogTimeLayout = "2006-01-02 15:04:05"

// RequestID sets X-Request-Id on the response, reusing the client's value
// when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logging prints "METHOD URL - YYYY-MM-DD HH:MM:SS" (UTC) for every request
// it sees and counts the final status code.
func Logging(logger *log.Logger, clock ratelimit.Clock, m *metrics.Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	if clock == nil {
		clock = ratelimit.SystemClock
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Printf("%s %s - %s", r.Method, r.URL.RequestURI(), clock.Now().UTC().Format(LogTimeLayout))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Observed(r.Method, status)
		})
	}
}
