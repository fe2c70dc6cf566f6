// Package metrics holds the process-wide request instruments. The pipeline
// is the only writer; the flusher and the /metrics endpoint are the readers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the HTTP request instruments on a private registry so the
// collection lifecycle is owned explicitly rather than through globals.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates the instrument set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orchestrate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "orchestrate",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orchestrate",
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.inFlight,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns the Prometheus scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncInFlight marks a request as started.
func (m *Metrics) IncInFlight() { m.inFlight.Inc() }

// DecInFlight marks a request as finished.
func (m *Metrics) DecInFlight() { m.inFlight.Dec() }

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, path, status).Inc()
	m.duration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot summarises the request instruments for the periodic log flush.
type Snapshot struct {
	RequestCount    uint64
	DurationCount   uint64
	DurationSumSecs float64
}

// Gather produces a snapshot of the aggregate request view.
func (m *Metrics) Gather() (Snapshot, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	for _, mf := range families {
		switch mf.GetName() {
		case "orchestrate_http_requests_total":
			for _, metric := range mf.GetMetric() {
				snap.RequestCount += uint64(metric.GetCounter().GetValue())
			}
		case "orchestrate_http_request_duration_seconds":
			for _, metric := range mf.GetMetric() {
				snap.DurationCount += metric.GetHistogram().GetSampleCount()
				snap.DurationSumSecs += metric.GetHistogram().GetSampleSum()
			}
		}
	}
	return snap, nil
}
