package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Validation outcomes by result: "valid", "invalid_format", "invalid_length", "invalid_checksum"
	Validations *prometheus.CounterVec

	// Registry lookup outcomes by result
	LookupOutcome *prometheus.CounterVec

	// Latency of the remote GSIS call, excluding local validation
	LookupLatency prometheus.Histogram

	// 1 while the registry circuit breaker is open
	BreakerOpen prometheus.Gauge

	// HTTP request metrics, labelled by chi route pattern
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxid_afm_validations_total",
			Help: "Total AFM validations by result",
		}, []string{"result"}),

		LookupOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxid_registry_lookups_total",
			Help: "Total registry lookups by outcome",
		}, []string{"outcome"}),

		LookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxid_registry_lookup_duration_seconds",
			Help:    "Duration of remote registry lookups",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxid_registry_circuit_open",
			Help: "Whether the registry circuit breaker is open (1) or closed (0)",
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxid_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxid_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),

		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxid_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
	}
}

// IncrementValidation records a validation result.
func (m *Metrics) IncrementValidation(result string) {
	if m != nil {
		m.Validations.WithLabelValues(result).Inc()
	}
}

// IncrementLookup records a lookup outcome.
func (m *Metrics) IncrementLookup(outcome string) {
	if m != nil {
		m.LookupOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveLookupLatency records the duration of a remote call.
func (m *Metrics) ObserveLookupLatency(d time.Duration) {
	if m != nil {
		m.LookupLatency.Observe(d.Seconds())
	}
}

// SetBreakerOpen tracks the breaker position.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
