package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Latency buckets in milliseconds. Store calls hit a local file; catalog
// calls cross the network and are bounded by the client timeout.
var (
	defaultRequestBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	defaultStoreBuckets   = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000, 2000}
	defaultCatalogBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for the HTTP request metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithRequestBuckets sets the HTTP request duration buckets (ms).
func WithRequestBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.requestBuckets = buckets
		}
	}
}

// WithStoreBuckets sets the record store latency buckets (ms).
func WithStoreBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.storeBuckets = buckets
		}
	}
}

// WithCatalogBuckets sets the outbound catalog latency and rate limiter
// wait buckets (ms).
func WithCatalogBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.catalogBuckets = buckets
		}
	}
}

// WithMetricsEnabled enables or disables metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithPrometheusRegistry sets a custom Prometheus registry.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
