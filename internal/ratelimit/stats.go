package ratelimit

import (
	"context"
	"sync"
	"time"
)

// StatsEvent describes one limiter decision.
type StatsEvent struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsRecorder receives limiter decisions. Recording is best-effort: the
// middleware ignores returned errors.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters tallies decisions.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// MemoryStats keeps counters in process memory. Nothing expires.
type MemoryStats struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters
}

// NewMemoryStats creates an empty MemoryStats.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
}

func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = bump(s.total, ev.Allowed)
	s.byRoute[route] = bump(s.byRoute[route], ev.Allowed)
	s.byKey[ev.Key] = bump(s.byKey[ev.Key], ev.Allowed)
	return nil
}

func bump(c Counters, allowed bool) Counters {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	return c
}

// Total returns the counters across all keys and routes.
func (s *MemoryStats) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// StatsSnapshot is a point-in-time copy of MemoryStats.
type StatsSnapshot struct {
	Total  Counters            `json:"total"`
	Routes map[string]Counters `json:"routes"`
	Keys   map[string]Counters `json:"keys"`
}

// Snapshot copies the counters. Routes are keyed "METHOD path".
func (s *MemoryStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Total:  s.total,
		Routes: make(map[string]Counters, len(s.byRoute)),
		Keys:   make(map[string]Counters, len(s.byKey)),
	}
	for k, v := range s.byRoute {
		snap.Routes[k] = v
	}
	for k, v := range s.byKey {
		snap.Keys[k] = v
	}
	return snap
}

// MultiStats fans an event out to several recorders and returns the first
// error.
type MultiStats []StatsRecorder

func (m MultiStats) Record(ctx context.Context, ev StatsEvent) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
