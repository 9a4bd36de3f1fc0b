package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nfcemu/nfcemu/pkg/metrics"
)

func init() {
	metrics.RegisterSNEPMetricsConstructor(func() metrics.SNEPMetrics {
		return newSNEPMetrics()
	})
}

type snepMetrics struct {
	requestsTotal *prometheus.CounterVec
}

func newSNEPMetrics() *snepMetrics {
	reg := metrics.GetRegistry()
	return &snepMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcemu_snep_requests_total",
				Help: "Total SNEP requests and responses dispatched, by message code.",
			},
			[]string{"message_code"},
		),
	}
}

func (m *snepMetrics) RecordRequest(messageCode string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(messageCode).Inc()
}
