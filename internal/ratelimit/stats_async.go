package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncStats hands events to a single worker through a bounded queue so a
// slow recorder never holds up a request. Events are dropped when the queue
// is full.
type AsyncStats struct {
	next    StatsRecorder
	timeout time.Duration
	onErr   func(error)

	queue   chan StatsEvent
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// AsyncStatsOption configures AsyncStats.
type AsyncStatsOption func(*AsyncStats)

// WithQueueSize sets the queue capacity. Defaults to 1024.
func WithQueueSize(n int) AsyncStatsOption {
	return func(s *AsyncStats) {
		if n > 0 {
			s.queue = make(chan StatsEvent, n)
		}
	}
}

// WithRecordTimeout bounds each call to the wrapped recorder. Defaults to
// 500ms.
func WithRecordTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStats) { s.timeout = d }
}

// WithErrorHandler is called from the worker for every failed Record.
func WithErrorHandler(fn func(error)) AsyncStatsOption {
	return func(s *AsyncStats) { s.onErr = fn }
}

// NewAsyncStats starts the worker draining into next. Call Close to stop it.
func NewAsyncStats(next StatsRecorder, opts ...AsyncStatsOption) *AsyncStats {
	s := &AsyncStats{
		next:    next,
		timeout: 500 * time.Millisecond,
		queue:   make(chan StatsEvent, 1024),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record enqueues ev and returns immediately. The request context is not
// carried over to the worker.
func (s *AsyncStats) Record(_ context.Context, ev StatsEvent) error {
	select {
	case <-s.done:
		s.dropped.Add(1)
		return nil
	default:
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many events were discarded.
func (s *AsyncStats) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the worker and waits for an in-flight Record to return.
// Queued events are discarded.
func (s *AsyncStats) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *AsyncStats) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.forward(ev)
		}
	}
}

func (s *AsyncStats) forward(ev StatsEvent) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.next.Record(ctx, ev); err != nil && s.onErr != nil {
		s.onErr(err)
	}
}
