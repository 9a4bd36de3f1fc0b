package metrics

// NCIMetrics observes NCI command processing at the controller boundary:
// command counts by GID/OID and completion status, RF state transitions,
// and the size of the endpoint table.
//
// Example usage:
//
//	metrics.InitRegistry()
//	nciMetrics := metrics.NewNCIMetrics()
//	a := adaptor.Init(ctrl, adaptor.Callbacks{Metrics: nciMetrics})
type NCIMetrics interface {
	// RecordCommand records one processed NCI command by group id, opcode
	// id, and the NCI status byte of its response.
	RecordCommand(gid, oid, status byte)

	// RecordRFTransition records an RF sub-state-machine transition.
	RecordRFTransition(from, to string)

	// SetEndpointCount reports the current size of the RE table.
	SetEndpointCount(n int)

	// SetActiveEndpoint reports whether a remote endpoint is currently
	// selected (1) or not (0).
	SetActiveEndpoint(active bool)
}

// NewNCIMetrics returns the registered Prometheus-backed NCIMetrics
// implementation, or nil if metrics are disabled. A nil NCIMetrics is
// safe to call methods on only through the nil-receiver guards each
// concrete implementation provides; callers that may hold a nil value
// should check before dereferencing a non-interface field, but every
// RecordX/SetX method here is implemented to tolerate a nil receiver.
func NewNCIMetrics() NCIMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusNCIMetrics()
}

// newPrometheusNCIMetrics is implemented in pkg/metrics/prometheus/nci.go.
// This indirection avoids an import cycle between this package and the
// concrete Prometheus implementation.
var newPrometheusNCIMetrics func() NCIMetrics

// RegisterNCIMetricsConstructor registers the Prometheus NCI metrics
// constructor. Called by pkg/metrics/prometheus/nci.go's init.
func RegisterNCIMetricsConstructor(constructor func() NCIMetrics) {
	newPrometheusNCIMetrics = constructor
}
