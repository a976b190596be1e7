package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Archive job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCanceled  = "canceled"
	OutcomeFailed    = "failed"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	archiveJobs     *prometheus.CounterVec
	archiveBytes    *prometheus.CounterVec
	archiveDuration *prometheus.HistogramVec
	archiveEntries  prometheus.Histogram
	skippedEntries  prometheus.Counter
	activeStreams   prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	archiveJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_jobs_total",
		Help: "Archive downloads by mode and outcome",
	}, []string{"mode", "outcome"})

	archiveBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_bytes_total",
		Help: "Archive bytes handed to clients",
	}, []string{"mode"})

	archiveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archive_duration_seconds",
		Help:    "Time from first entry to the end of an archive download",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})

	archiveEntries := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_entries",
		Help:    "Number of entries per archive",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	skippedEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archive_skipped_entries_total",
		Help: "Selected photos skipped because they are missing from storage",
	})

	activeStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "archive_active_streams",
		Help: "Archive downloads currently in flight",
	})

	registry.MustRegister(requestDuration, requestTotal, archiveJobs, archiveBytes, archiveDuration,
		archiveEntries, skippedEntries, activeStreams)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		archiveJobs:     archiveJobs,
		archiveBytes:    archiveBytes,
		archiveDuration: archiveDuration,
		archiveEntries:  archiveEntries,
		skippedEntries:  skippedEntries,
		activeStreams:   activeStreams,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ArchiveStarted marks one download in flight. Call the returned func when
// it ends.
func (m *Metrics) ArchiveStarted(entries int) func() {
	if m == nil {
		return func() {}
	}
	m.activeStreams.Inc()
	m.archiveEntries.Observe(float64(entries))
	return m.activeStreams.Dec
}

func (m *Metrics) ObserveArchive(mode, outcome string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.archiveJobs.WithLabelValues(mode, outcome).Inc()
	m.archiveBytes.WithLabelValues(mode).Add(float64(bytes))
	m.archiveDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) SkippedEntry() {
	if m == nil {
		return
	}
	m.skippedEntries.Inc()
}
