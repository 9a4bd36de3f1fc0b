package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nfcemu/nfcemu/pkg/metrics"
)

func init() {
	metrics.RegisterLLCPMetricsConstructor(func() metrics.LLCPMetrics {
		return newLLCPMetrics()
	})
}

type llcpMetrics struct {
	pdusTotal           *prometheus.CounterVec
	symmTimerFiresTotal prometheus.Counter
}

func newLLCPMetrics() *llcpMetrics {
	reg := metrics.GetRegistry()
	return &llcpMetrics{
		pdusTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcemu_llcp_pdus_total",
				Help: "Total LLCP PDUs by type and direction.",
			},
			[]string{"ptype", "direction"},
		),
		symmTimerFiresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfcemu_llcp_symm_timer_fires_total",
				Help: "Total times the LLCP xmit turn-taking timer fired with no pending PDU.",
			},
		),
	}
}

func (m *llcpMetrics) RecordPDU(ptype, direction string) {
	if m == nil {
		return
	}
	m.pdusTotal.WithLabelValues(ptype, direction).Inc()
}

func (m *llcpMetrics) RecordSYMMTimerFire() {
	if m == nil {
		return
	}
	m.symmTimerFiresTotal.Inc()
}
