// Package telemetry exposes Prometheus metrics about the load tests k6ui
// runs. It describes k6ui itself; target metrics stay in the k6 summary.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "k6ui"

// Outcome labels.
const (
	OutcomeCompleted      = "completed"
	OutcomeInvalid        = "invalid"
	OutcomeRejected       = "rejected"
	OutcomeBinaryNotFound = "binary_not_found"
	OutcomeFailed         = "failed"
	OutcomeTimeout        = "timeout"
	OutcomeOverflow       = "overflow"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates the collectors and a registry with Go and process metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_tests_total",
			Help:      "Load test requests by outcome.",
		}, []string{"outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_test_duration_seconds",
			Help:      "Wall clock duration of k6 runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_tests_in_flight",
			Help:      "k6 processes currently running.",
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.duration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RunStarted marks a k6 process as started.
func (m *Metrics) RunStarted() {
	m.inFlight.Inc()
}

// RunFinished records a k6 process that has exited.
func (m *Metrics) RunFinished(outcome string, d time.Duration) {
	m.inFlight.Dec()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
	m.runs.WithLabelValues(outcome).Inc()
}

// RunRejected records a request that never reached k6.
func (m *Metrics) RunRejected(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
