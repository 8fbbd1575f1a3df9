package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and sweeper flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	batchesStartedTotal prometheus.Counter
	batchesFinished     *prometheus.CounterVec
	filesUploadedTotal  prometheus.Counter
	uploadBytesTotal    prometheus.Counter
	errorsLoggedTotal   *prometheus.CounterVec
	sweepDuration       prometheus.Histogram
	sweptBatchesTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ingest_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "batches_started_total",
				Help:      "Total number of batches started.",
			},
		),
		batchesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "batches_finished_total",
				Help:      "Total number of batches reaching a terminal status.",
			},
			[]string{"status"},
		),
		filesUploadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "files_uploaded_total",
				Help:      "Total number of files accepted into batches.",
			},
		),
		uploadBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "upload_bytes_total",
				Help:      "Total bytes accepted into batches.",
			},
		),
		errorsLoggedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "errors_logged_total",
				Help:      "Total number of error log rows recorded by type.",
			},
			[]string{"type"},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "ingest_engine",
				Name:      "sweep_duration_seconds",
				Help:      "Timeout sweep duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		sweptBatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ingest_engine",
				Name:      "swept_batches_total",
				Help:      "Total number of batches expired by the sweeper.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesStartedTotal,
		m.batchesFinished,
		m.filesUploadedTotal,
		m.uploadBytesTotal,
		m.errorsLoggedTotal,
		m.sweepDuration,
		m.sweptBatchesTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchStarted() {
	if m == nil {
		return
	}
	m.batchesStartedTotal.Inc()
}

func (m *Metrics) IncBatchFinished(status string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(status))
	if label == "" {
		label = "unknown"
	}
	m.batchesFinished.WithLabelValues(label).Inc()
}

func (m *Metrics) IncFileUploaded(size int64) {
	if m == nil {
		return
	}
	m.filesUploadedTotal.Inc()
	if size > 0 {
		m.uploadBytesTotal.Add(float64(size))
	}
}

func (m *Metrics) IncErrorLogged(errorType string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(errorType))
	if label == "" {
		label = "unknown"
	}
	m.errorsLoggedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveSweepDuration(duration time.Duration, swept int) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sweepDuration.Observe(seconds)
	if swept > 0 {
		m.sweptBatchesTotal.Add(float64(swept))
	}
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
