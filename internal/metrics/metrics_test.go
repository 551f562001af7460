package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Rejected(GateOrigin)
	m.Rejected(GateOrigin)
	m.Rejected(GateAPIKey)
	m.Observed("GET", 200)
	m.SetTasks(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateRejections.WithLabelValues(GateOrigin)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRejections.WithLabelValues(GateAPIKey)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TasksStored))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Rejected(GateOrigin)
	m.Observed("GET", 200)
	m.SetTasks(1)
	m.WatchDecisions(ratelimit.NewMemoryStats())
}

func TestHandler(t *testing.T) {
	m := New()
	m.Rejected(GateMethod)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, _ := io.ReadAll(rr.Body)
	assert.True(t, strings.Contains(string(body), `tareas_gate_rejections_total{gate="method"} 1`))
}

func TestWatchDecisions(t *testing.T) {
	m := New()
	stats := ratelimit.NewMemoryStats()
	m.WatchDecisions(stats)

	ctx := context.Background()
	require.NoError(t, stats.Record(ctx, ratelimit.StatsEvent{Key: "10.0.0.1", Allowed: true}))
	require.NoError(t, stats.Record(ctx, ratelimit.StatsEvent{Key: "10.0.0.1", Allowed: true}))
	require.NoError(t, stats.Record(ctx, ratelimit.StatsEvent{Key: "10.0.0.1", Allowed: false}))

	expected := `
# HELP tareas_rate_limit_decisions_total Rate limiter decisions.
# TYPE tareas_rate_limit_decisions_total counter
tareas_rate_limit_decisions_total{decision="allowed"} 2
tareas_rate_limit_decisions_total{decision="denied"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.registry, strings.NewReader(expected),
		"tareas_rate_limit_decisions_total"))

	// Values follow the source between scrapes.
	require.NoError(t, stats.Record(ctx, ratelimit.StatsEvent{Key: "10.0.0.2", Allowed: false}))
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `tareas_rate_limit_decisions_total{decision="denied"} 2`)
}
