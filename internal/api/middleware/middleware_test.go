package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, method, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/tareas", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body domain.APIError
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %q", rr.Body.String())
	}
	return body.Error
}

func TestPeerOf(t *testing.T) {
	tests := []struct {
		remote string
		want   Peer
	}{
		{"127.0.0.1:5000", Peer{Addr: "127.0.0.1", Port: 5000}},
		{"[::1]:3001", Peer{Addr: "::1", Port: 3001}},
		{"10.0.0.1:abc", Peer{Addr: "10.0.0.1", Port: -1}},
		{"garbage", Peer{Addr: "garbage", Port: -1}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := PeerOf(req); got != tt.want {
			t.Errorf("PeerOf(%q) = %+v, want %+v", tt.remote, got, tt.want)
		}
	}
}

func TestOrigin(t *testing.T) {
	m := metrics.New()
	h := Origin([]string{"127.0.0.1", "::1"}, 3001, m)(okHandler)

	tests := []struct {
		name   string
		remote string
		want   int
	}{
		{"ipv4 loopback", "127.0.0.1:40000", http.StatusOK},
		{"ipv6 loopback", "[::1]:40000", http.StatusOK},
		{"trusted port", "192.168.1.20:3001", http.StatusOK},
		{"other host", "192.168.1.20:40000", http.StatusForbidden},
		{"mapped loopback is not literal", "[::ffff:127.0.0.1]:40000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, http.MethodGet, tt.remote, map[string]string{APIKeyHeader: "12345"})
			if rr.Code != tt.want {
				t.Fatalf("Expected status %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusForbidden {
				if msg := errorMessage(t, rr); msg != "Acceso solo permitido desde 127.0.0.1 o puerto 3001" {
					t.Errorf("unexpected message %q", msg)
				}
			}
		})
	}

	if got := testutil.ToFloat64(m.GateRejections.WithLabelValues(metrics.GateOrigin)); got != 2 {
		t.Errorf("expected 2 origin rejections, got %v", got)
	}
}

func TestAPIKey(t *testing.T) {
	h := APIKey("12345", nil)(okHandler)

	rr := serve(h, http.MethodGet, "127.0.0.1:1", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != domain.MsgMissingAPIKey {
		t.Errorf("unexpected message %q", msg)
	}

	rr = serve(h, http.MethodGet, "127.0.0.1:1", map[string]string{APIKeyHeader: "54321"})
	if rr.Code != http.StatusForbidden {
		t.Errorf("wrong key: expected 403, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != domain.MsgInvalidAPIKey {
		t.Errorf("unexpected message %q", msg)
	}

	rr = serve(h, http.MethodGet, "127.0.0.1:1", map[string]string{"X-API-KEY": "12345"})
	if rr.Code != http.StatusOK {
		t.Errorf("valid key: expected 200, got %d", rr.Code)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	at := time.Date(2025, 8, 29, 21, 15, 33, 0, time.UTC)
	m := metrics.New()

	h := Logging(logger, ratelimit.ClockFunc(func() time.Time { return at }), m)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

	req := httptest.NewRequest(http.MethodPost, "/tareas?x=1", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := strings.TrimSpace(buf.String()); got != "POST /tareas?x=1 - 2025-08-29 21:15:33" {
		t.Errorf("unexpected log line %q", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("POST", "201")); got != 1 {
		t.Errorf("expected one POST 201, got %v", got)
	}
}

func TestRequestID(t *testing.T) {
	h := RequestID(okHandler)

	rr := serve(h, http.MethodGet, "127.0.0.1:1", nil)
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}

	rr = serve(h, http.MethodGet, "127.0.0.1:1", map[string]string{RequestIDHeader: "abc"})
	if got := rr.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2025, 8, 29, 21, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewSlidingWindow(5, time.Minute,
		ratelimit.WithClock(ratelimit.ClockFunc(func() time.Time { return now })))
	stats := ratelimit.NewMemoryStats()

	calls := 0
	h := RateLimit(RateLimitOptions{
		Limiter: limiter,
		Stats:   stats,
		Logger:  log.New(&bytes.Buffer{}, "", 0),
		Headers: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	// Different ports of one host share a bucket.
	for i := 0; i < 5; i++ {
		rr := serve(h, http.MethodGet, "10.0.0.1:"+string(rune('1'+i))+"000", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := serve(h, http.MethodGet, "10.0.0.1:9999", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != domain.MsgTooManyRequests {
		t.Errorf("unexpected message %q", msg)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected remaining 0, got %q", got)
	}
	if calls != 5 {
		t.Errorf("expected next handler to run 5 times, got %d", calls)
	}

	// Another host is unaffected.
	if rr := serve(h, http.MethodGet, "10.0.0.2:1000", nil); rr.Code != http.StatusOK {
		t.Errorf("other host: expected 200, got %d", rr.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if rr := serve(h, http.MethodGet, "10.0.0.1:1000", nil); rr.Code != http.StatusOK {
		t.Errorf("after window: expected 200, got %d", rr.Code)
	}

	if got := stats.Snapshot().Keys["10.0.0.1"]; got.Allowed != 6 || got.Denied != 1 {
		t.Errorf("unexpected stats %+v", got)
	}
}

type eventLog struct {
	events []ratelimit.StatsEvent
}

func (l *eventLog) Record(_ context.Context, ev ratelimit.StatsEvent) error {
	l.events = append(l.events, ev)
	return nil
}

func TestRateLimitStampsEventsWithClock(t *testing.T) {
	now := time.Date(2025, 8, 29, 21, 59, 59, 0, time.UTC)
	clock := ratelimit.ClockFunc(func() time.Time { return now })
	events := &eventLog{}

	h := RateLimit(RateLimitOptions{
		Limiter: ratelimit.NewSlidingWindow(5, time.Minute, ratelimit.WithClock(clock)),
		Stats:   events,
		Clock:   clock,
		Logger:  log.New(&bytes.Buffer{}, "", 0),
	})(okHandler)

	serve(h, http.MethodGet, "10.0.0.1:1000", nil)
	now = now.Add(2 * time.Second)
	serve(h, http.MethodGet, "10.0.0.1:1000", nil)

	if n := len(events.events); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
	if got := events.events[0].At; !got.Equal(time.Date(2025, 8, 29, 21, 59, 59, 0, time.UTC)) {
		t.Errorf("first event stamped %v", got)
	}
	if got := events.events[1].At; !got.Equal(now) {
		t.Errorf("second event stamped %v, want %v", got, now)
	}

	// The per-minute key follows the injected clock, not the wall clock.
	rs := ratelimit.NewRedisStats(nil)
	if got := rs.MinuteKey(events.events[1].At); got != "tareas:ratelimit:minute:202508292200" {
		t.Errorf("unexpected minute key %q", got)
	}
}

// silentRedis accepts connections and never writes a byte back.
func silentRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestRateLimitDoesNotWaitOnStats(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         silentRedis(t),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { rdb.Close() })

	stats := ratelimit.NewAsyncStats(ratelimit.NewRedisStats(rdb), ratelimit.WithQueueSize(4))
	t.Cleanup(stats.Close)

	h := RateLimit(RateLimitOptions{
		Limiter: ratelimit.NewSlidingWindow(100, time.Minute),
		Stats:   stats,
		Logger:  log.New(&bytes.Buffer{}, "", 0),
	})(okHandler)

	start := time.Now()
	for i := 0; i < 20; i++ {
		if rr := serve(h, http.MethodGet, "10.0.0.1:1000", nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("20 requests took %v with an unresponsive stats backend", elapsed)
	}
	if stats.Dropped() == 0 {
		t.Error("expected events beyond the queue to be dropped")
	}
}

func TestRetrySeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{time.Nanosecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{50 * time.Second, 50},
	}
	for _, tt := range tests {
		if got := retrySeconds(tt.d); got != tt.want {
			t.Errorf("retrySeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestBlockMethods(t *testing.T) {
	h := BlockMethods(nil, http.MethodPatch, http.MethodOptions)(okHandler)

	for _, method := range []string{http.MethodPatch, http.MethodOptions} {
		rr := serve(h, method, "127.0.0.1:1", nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", method, rr.Code)
		}
		if msg := errorMessage(t, rr); msg != domain.MsgMethodNotAllowed {
			t.Errorf("unexpected message %q", msg)
		}
	}
	if rr := serve(h, http.MethodGet, "127.0.0.1:1", nil); rr.Code != http.StatusOK {
		t.Errorf("GET: expected 200, got %d", rr.Code)
	}
}
