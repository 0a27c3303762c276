// Package metrics exposes Prometheus metrics for the ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "ledger"

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Import metrics
	ImportsTotal    *prometheus.CounterVec
	ImportRows      *prometheus.CounterVec
	ImportDuration  *prometheus.HistogramVec
	ImportsInFlight prometheus.Gauge

	// History retention
	HistoryPurged prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "imports_total",
			Help:      "Import attempts by final status and the stage they ended in",
		},
		[]string{"status", "stage"},
	)

	m.ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "import_rows_total",
			Help:      "Rows committed or skipped by successful imports",
		},
		[]string{"outcome"},
	)

	m.ImportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "import_duration_seconds",
			Help:      "Import duration from decode to commit",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	m.ImportsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "imports_in_flight",
			Help:      "Imports currently holding a limiter slot",
		},
	)

	m.HistoryPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "import_history_purged_total",
			Help:      "Import history entries removed by the retention job",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ImportsTotal,
		m.ImportRows,
		m.ImportDuration,
		m.ImportsInFlight,
		m.HistoryPurged,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one completed request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight marks a request as started.
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight marks a request as finished.
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// ObserveImport records a finished import attempt.
func (m *Metrics) ObserveImport(status, stage string, inserted, skipped int, elapsed time.Duration) {
	m.ImportsTotal.WithLabelValues(status, stage).Inc()
	m.ImportDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if inserted > 0 {
		m.ImportRows.WithLabelValues("inserted").Add(float64(inserted))
	}
	if skipped > 0 {
		m.ImportRows.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// SetImportsInFlight reports the limiter's active slot count.
func (m *Metrics) SetImportsInFlight(n int) {
	m.ImportsInFlight.Set(float64(n))
}

// ObserveHistoryPurge records entries removed by the retention job.
func (m *Metrics) ObserveHistoryPurge(n int64) {
	m.HistoryPurged.Add(float64(n))
}
