package metrics

// SNEPMetrics observes SNEP request dispatch on an endpoint's well-known
// SAP, by message code name (e.g. "REQ_PUT", "REQ_GET", "RSP_SUCCESS").
type SNEPMetrics interface {
	RecordRequest(messageCode string)
}

// NewSNEPMetrics returns the registered Prometheus-backed SNEPMetrics
// implementation, or nil if metrics are disabled.
func NewSNEPMetrics() SNEPMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusSNEPMetrics()
}

var newPrometheusSNEPMetrics func() SNEPMetrics

// RegisterSNEPMetricsConstructor registers the Prometheus SNEP metrics
// constructor. Called by pkg/metrics/prometheus/snep.go's init.
func RegisterSNEPMetricsConstructor(constructor func() SNEPMetrics) {
	newPrometheusSNEPMetrics = constructor
}
