package metrics

// LLCPMetrics observes traffic on a remote endpoint's LLCP data links:
// PDUs by type and direction, and SYMM turn-taking timer fires.
type LLCPMetrics interface {
	// RecordPDU records one PDU by its LLCP PTYPE name and direction
	// ("rx" or "tx").
	RecordPDU(ptype, direction string)

	// RecordSYMMTimerFire records the xmit turn-taking timer firing
	// because no application PDU was pending.
	RecordSYMMTimerFire()
}

// NewLLCPMetrics returns the registered Prometheus-backed LLCPMetrics
// implementation, or nil if metrics are disabled.
func NewLLCPMetrics() LLCPMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusLLCPMetrics()
}

var newPrometheusLLCPMetrics func() LLCPMetrics

// RegisterLLCPMetricsConstructor registers the Prometheus LLCP metrics
// constructor. Called by pkg/metrics/prometheus/llcp.go's init.
func RegisterLLCPMetricsConstructor(constructor func() LLCPMetrics) {
	newPrometheusLLCPMetrics = constructor
}
