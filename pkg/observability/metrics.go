package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds folio's Prometheus collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Workflow engine
	WorkflowOperationsTotal *prometheus.CounterVec
	StatusTransitionsTotal  *prometheus.CounterVec

	// Authorization and admission
	AuthzDenialsTotal *prometheus.CounterVec
	RateLimitedTotal  *prometheus.CounterVec

	// Manuscript storage
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	ManuscriptBytes          prometheus.Histogram

	// Role cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers folio's collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),
		WorkflowOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_workflow_operations_total",
				Help: "Workflow operations by outcome (ok or error kind)",
			},
			[]string{"operation", "outcome"},
		),
		StatusTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_submission_status_transitions_total",
				Help: "Submission status transitions",
			},
			[]string{"from", "to"},
		),
		AuthzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_authz_denials_total",
				Help: "Requests rejected with 403 by route",
			},
			[]string{"route"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_storage_operations_total",
				Help: "Manuscript store operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_storage_operation_duration_seconds",
				Help:    "Manuscript store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		ManuscriptBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_manuscript_upload_bytes",
				Help:    "Size of accepted manuscript uploads",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_hits_total",
				Help: "Cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_misses_total",
				Help: "Cache misses",
			},
			[]string{"cache"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.WorkflowOperationsTotal,
		m.StatusTransitionsTotal,
		m.AuthzDenialsTotal,
		m.RateLimitedTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.ManuscriptBytes,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}

// RegisterDBStats exports connection pool statistics for db.
func (m *Metrics) RegisterDBStats(db *sql.DB, name string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// RecordWorkflowOperation counts one workflow operation.
func (m *Metrics) RecordWorkflowOperation(op, outcome string) {
	m.WorkflowOperationsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordStatusTransition counts one submission status change.
func (m *Metrics) RecordStatusTransition(from, to string) {
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordRateLimited counts a request rejected by limiter.
func (m *Metrics) RecordRateLimited(limiter string) {
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RecordStorageOperation counts and times one file store call.
func (m *Metrics) RecordStorageOperation(op, backend string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(op, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(op, backend).Observe(d.Seconds())
}

// RecordUploadSize observes the size of a stored manuscript.
func (m *Metrics) RecordUploadSize(backend string, n int64) {
	m.ManuscriptBytes.Observe(float64(n))
}

// RecordCacheHit counts a hit in the named cache.
func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss in the named cache.
func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched mux route template so IDs do not become
// label values.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments requests. Use it as mux middleware so
// the route template is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
			switch rw.statusCode {
			case http.StatusForbidden:
				metrics.AuthzDenialsTotal.WithLabelValues(route).Inc()
			case http.StatusTooManyRequests:
				metrics.RecordRateLimited("http")
			}
		})
	}
}

// MetricsHandler serves the registry in Prometheus text format.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
