package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"golang.org/x/time/rate"
)

// KeyFunc derives the rate-limit bucket of a request.
type KeyFunc func(r *http.Request) string

// ClientAddr buckets by remote address only: every port of a host shares one
// bucket.
func ClientAddr(r *http.Request) string {
	if addr := PeerOf(r).Addr; addr != "" {
		return addr
	}
	return "unknown"
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	Limiter *ratelimit.SlidingWindow
	Stats   ratelimit.StatsRecorder
	KeyFn   KeyFunc
	// Clock stamps stats events. Defaults to ratelimit.SystemClock.
	Clock   ratelimit.Clock
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Headers adds X-RateLimit-Limit, X-RateLimit-Remaining and, on
	// rejection, Retry-After.
	Headers bool
}

// RateLimit rejects clients that exceeded the sliding window with 429.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ClientAddr
	}
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	// At most one rejection log line per interval.
	logEvery := &rate.Sometimes{Interval: 10 * time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			dec := opts.Limiter.Take(key)

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), ratelimit.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Clock.Now(),
				})
			}

			if opts.Headers {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			}

			if !dec.Allowed {
				opts.Metrics.Rejected(metrics.GateRateLimit)
				logEvery.Do(func() {
					opts.Logger.Printf("rate limit exceeded for %s", key)
				})
				if opts.Headers {
					w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(dec.RetryAfter)))
				}
				WriteError(w, http.StatusTooManyRequests, domain.MsgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retrySeconds rounds d up to whole seconds, at least 1.
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
