package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Limit is the configured maximum per window.
	Limit int
	// Remaining is how many more requests the key may make in the current
	// window after this one.
	Remaining int
	// RetryAfter is how long until the oldest counted request leaves the
	// window. Zero when Allowed.
	RetryAfter time.Duration
}

// SlidingWindow admits at most max requests per key within any trailing
// window. Only admitted requests are recorded.
type SlidingWindow struct {
	mu     sync.Mutex
	hits   map[string][]time.Time // per key, oldest first
	window time.Duration
	max    int
	clock  Clock
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock sets the clock used by Take. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(l *SlidingWindow) { l.clock = c }
}

// NewSlidingWindow creates a limiter allowing limit requests per window.
func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	l := &SlidingWindow{
		hits:   make(map[string][]time.Time),
		window: window,
		max:    limit,
		clock:  SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks key at instant now and records the request when admitted.
// The check and the append happen under one lock.
func (l *SlidingWindow) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allow(key, now)
}

// Take is Allow at the limiter clock's current time. The clock is read under
// the lock, so timestamps for a key are appended in order.
func (l *SlidingWindow) Take(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allow(key, l.clock.Now())
}

func (l *SlidingWindow) allow(key string, now time.Time) Decision {
	hits := evict(l.hits[key], now.Add(-l.window))

	if len(hits) >= l.max {
		l.hits[key] = hits
		retry := time.Duration(0)
		if len(hits) > 0 {
			retry = hits[0].Add(l.window).Sub(now)
		}
		if retry <= 0 {
			retry = time.Nanosecond
		}
		return Decision{Allowed: false, Limit: l.max, Remaining: 0, RetryAfter: retry}
	}

	hits = append(hits, now)
	l.hits[key] = hits
	return Decision{Allowed: true, Limit: l.max, Remaining: l.max - len(hits)}
}

// evict drops the prefix of hits older than cutoff. hits is time-ordered,
// so the scan stops at the first survivor. A hit exactly at cutoff stays.
func evict(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && hits[i].Before(cutoff) {
		i++
	}
	if i == len(hits) {
		return hits[:0]
	}
	return hits[i:]
}
