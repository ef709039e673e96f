// Package observability provides Prometheus instrumentation for the
// gateway: per-request counters and latency histograms at the dispatch
// layer, plus upstream failure counters fed through llmclient hooks.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"modelgate/internal/pkg/llmclient"
)

// LLM calls run far longer than typical HTTP handlers; buckets extend to
// the 60s upstream timeout.
var durationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
}

// New registers the gateway collectors on reg. Use
// prometheus.DefaultRegisterer outside tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelgate_requests_total",
			Help: "Completion requests by provider, model, and HTTP status.",
		}, []string{"provider", "model", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modelgate_request_duration_seconds",
			Help:    "Wall-clock duration of the adapter call.",
			Buckets: durationBuckets,
		}, []string{"provider", "model"}),
		upstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelgate_upstream_errors_total",
			Help: "Upstream call failures by provider and status code.",
		}, []string{"provider", "status"}),
	}
}

// ObserveRequest records one finished dispatch.
func (m *Metrics) ObserveRequest(provider, model string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(provider, model, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// UpstreamHooks adapts the collectors to the llmclient hook interface.
// statusCode 0 (the request never produced a response) is labeled as such.
func (m *Metrics) UpstreamHooks() llmclient.Hooks {
	if m == nil {
		return llmclient.Hooks{}
	}
	return llmclient.Hooks{
		ObserveUpstream: func(provider string, statusCode int, _ time.Duration, err error) {
			if err == nil {
				return
			}
			m.upstreamErrors.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
		},
	}
}
