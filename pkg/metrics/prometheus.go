// Package metrics provides Prometheus metrics for the movierank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the movierank service.
type Manager struct {
	namespace      string
	subsystem      string
	requestBuckets []float64
	storeBuckets   []float64
	catalogBuckets []float64
	enabled        bool
	registry       prometheus.Registerer

	// Collection metrics
	moviesTotal     prometheus.Gauge
	moviesByOwner   *prometheus.GaugeVec
	duplicateTitles prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Catalog client metrics
	catalogRequests       *prometheus.CounterVec
	catalogLatency        *prometheus.HistogramVec
	breakerState          *prometheus.GaugeVec
	breakerTransitions    *prometheus.CounterVec
	catalogRateLimitWaits prometheus.Histogram

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "movierank",
		subsystem:      "app",
		requestBuckets: defaultRequestBuckets,
		storeBuckets:   defaultStoreBuckets,
		catalogBuckets: defaultCatalogBuckets,
		enabled:        true,
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.moviesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movies_total",
		Help:      "Number of movies in the record store",
	})

	m.moviesByOwner = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movies_by_owner",
		Help:      "Number of movies per owner (empty owner for unassigned)",
	}, []string{"owner"})

	m.duplicateTitles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_titles_total",
		Help:      "Add attempts rejected because the title already exists",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.requestBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.catalogRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "catalog",
		Name:      "requests_total",
		Help:      "Outbound catalog requests by operation and outcome",
	}, []string{"operation", "outcome"})

	m.catalogLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "catalog",
		Name:      "request_duration_milliseconds",
		Help:      "Outbound catalog request latency in milliseconds",
		Buckets:   m.catalogBuckets,
	}, []string{"operation"})

	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "catalog",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	m.breakerTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "catalog",
		Name:      "circuit_breaker_transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})

	m.catalogRateLimitWaits = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "catalog",
		Name:      "rate_limit_wait_milliseconds",
		Help:      "Time spent waiting on the outbound rate limiter",
		Buckets:   m.catalogBuckets,
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "operation_duration_milliseconds",
		Help:      "Record store operation latency in milliseconds",
		Buckets:   m.storeBuckets,
	}, []string{"operation"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Record store errors by operation",
	}, []string{"operation"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	})
}

// Collection metrics.

// UpdateMoviesTotal sets the number of stored movies.
func UpdateMoviesTotal(n int) {
	if globalManager.enabled {
		globalManager.moviesTotal.Set(float64(n))
	}
}

// UpdateMoviesByOwner replaces the per-owner gauge values.
func UpdateMoviesByOwner(counts map[string]int) {
	if !globalManager.enabled {
		return
	}
	globalManager.moviesByOwner.Reset()
	for owner, n := range counts {
		globalManager.moviesByOwner.WithLabelValues(owner).Set(float64(n))
	}
}

// RecordDuplicateTitle counts a rejected add.
func RecordDuplicateTitle() {
	if globalManager.enabled {
		globalManager.duplicateTitles.Inc()
	}
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByEndpoint records an error for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

// Catalog metrics.

// RecordCatalogRequest records one outbound catalog call.
func RecordCatalogRequest(operation, outcome string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogRequests.WithLabelValues(operation, outcome).Inc()
	globalManager.catalogLatency.WithLabelValues(operation).Observe(durationMs)
}

// RecordCatalogRateLimitWait records time blocked on the outbound limiter.
func RecordCatalogRateLimitWait(durationMs float64) {
	if globalManager.enabled {
		globalManager.catalogRateLimitWaits.Observe(durationMs)
	}
}

// UpdateCircuitBreakerState sets the breaker state gauge.
func UpdateCircuitBreakerState(name string, state float64) {
	if globalManager.enabled {
		globalManager.breakerState.WithLabelValues(name).Set(state)
	}
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	if globalManager.enabled {
		globalManager.breakerTransitions.WithLabelValues(name, from, to).Inc()
	}
}

// Store metrics.

// RecordStoreOperation records latency for a store operation and counts failures.
func RecordStoreOperation(operation string, durationMs float64, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(operation).Observe(durationMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// System metrics.

// UpdateSystemMemoryUsage updates the memory usage metric.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount updates the goroutine count metric.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(durationMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(durationMs)
	}
}
