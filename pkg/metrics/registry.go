// Package metrics defines the observability interfaces the controller,
// RE engine, and LLCP/SNEP layers collect against, plus the registry
// plumbing used to enable or disable collection at startup. Concrete
// Prometheus implementations live in pkg/metrics/prometheus and register
// themselves here via the RegisterXMetricsConstructor indirection, which
// keeps this package free of a direct dependency on client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the Prometheus registry metrics are collected
// into and marks metrics as enabled. Must be called before the first
// NewXMetrics call for that call to return a live implementation;
// skipping it leaves every NewXMetrics call returning a nil interface,
// which callers check for before recording.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return enabled }

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry { return registry }
