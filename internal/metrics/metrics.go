package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the refresh controller.
type Metrics struct {
	// Decisions by bucket and action (empty, skipped, coalesced, generated, failed)
	Decisions *prometheus.CounterVec

	// Latency of individual generation attempts
	GenerateLatency prometheus.Histogram

	// Failed generation attempts by bucket
	GenerateFailures *prometheus.CounterVec

	// Buckets with a generation call currently in flight
	InFlight prometheus.Gauge
}

// New registers the instruments with reg. Pass prometheus.NewRegistry() in
// tests to avoid colliding with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_refresh_decisions_total",
			Help: "Refresh controller decisions by bucket and action",
		}, []string{"bucket", "action"}),

		GenerateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aura_generate_duration_seconds",
			Help:    "Insight generation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // LLM calls run long
		}),

		GenerateFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_generate_failures_total",
			Help: "Failed insight generation attempts by bucket",
		}, []string{"bucket"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aura_inflight_buckets",
			Help: "Number of buckets with a generation call in flight",
		}),
	}
}

// RecordDecision counts one controller decision. Safe on a nil receiver.
func (m *Metrics) RecordDecision(bucket, action string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(bucket, action).Inc()
}

// RecordGenerate observes one generation attempt.
func (m *Metrics) RecordGenerate(bucket string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.GenerateLatency.Observe(seconds)
	if failed {
		m.GenerateFailures.WithLabelValues(bucket).Inc()
	}
}

// BucketStarted marks a bucket as in flight.
func (m *Metrics) BucketStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// BucketFinished marks a bucket as idle again.
func (m *Metrics) BucketFinished() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}
