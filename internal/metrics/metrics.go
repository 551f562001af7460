// Package metrics exposes Prometheus collectors for the request pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gate names used as the "gate" label.
const (
	GateOrigin    = "origin"
	GateAPIKey    = "api_key"
	GateRateLimit = "rate_limit"
	GateMethod    = "method"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GateRejections *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	TasksStored    prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tareas_gate_rejections_total",
			Help: "Requests rejected by a pipeline gate.",
		}, []string{"gate"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tareas_http_requests_total",
			Help: "Requests that reached the logger, by method and status code.",
		}, []string{"method", "code"}),
		TasksStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tareas_tasks_stored",
			Help: "Tasks currently in the store.",
		}),
	}
	m.registry.MustRegister(m.GateRejections, m.Requests, m.TasksStored)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Rejected counts a rejection by gate.
func (m *Metrics) Rejected(gate string) {
	if m == nil {
		return
	}
	m.GateRejections.WithLabelValues(gate).Inc()
}

// Observed counts a finished request.
func (m *Metrics) Observed(method string, code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SetTasks sets the stored-task gauge.
func (m *Metrics) SetTasks(n int) {
	if m == nil {
		return
	}
	m.TasksStored.Set(float64(n))
}

// DecisionSource reports running limiter decision totals.
type DecisionSource interface {
	Total() ratelimit.Counters
}

// WatchDecisions exports src as tareas_rate_limit_decisions_total. The value
// is read from src at scrape time.
func (m *Metrics) WatchDecisions(src DecisionSource) {
	if m == nil || src == nil {
		return
	}
	m.registry.MustRegister(&decisionCollector{src: src})
}

var decisionsDesc = prometheus.NewDesc(
	"tareas_rate_limit_decisions_total",
	"Rate limiter decisions.",
	[]string{"decision"}, nil,
)

type decisionCollector struct {
	src DecisionSource
}

func (c *decisionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- decisionsDesc
}

func (c *decisionCollector) Collect(ch chan<- prometheus.Metric) {
	total := c.src.Total()
	ch <- prometheus.MustNewConstMetric(decisionsDesc, prometheus.CounterValue, float64(total.Allowed), "allowed")
	ch <- prometheus.MustNewConstMetric(decisionsDesc, prometheus.CounterValue, float64(total.Denied), "denied")
}
