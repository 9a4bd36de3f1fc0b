// Package prometheus provides Prometheus-backed implementations of the
// pkg/metrics interfaces, registered with their base-package constructors
// at init time so callers only ever depend on pkg/metrics.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nfcemu/nfcemu/pkg/metrics"
)

func init() {
	metrics.RegisterNCIMetricsConstructor(func() metrics.NCIMetrics {
		return newNCIMetrics()
	})
}

type nciMetrics struct {
	commandsTotal      *prometheus.CounterVec
	rfTransitionsTotal *prometheus.CounterVec
	endpointCount      prometheus.Gauge
	activeEndpoint     prometheus.Gauge
}

func newNCIMetrics() *nciMetrics {
	reg := metrics.GetRegistry()
	return &nciMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcemu_nci_commands_total",
				Help: "Total NCI commands processed by group id, opcode id, and status.",
			},
			[]string{"gid", "oid", "status"},
		),
		rfTransitionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcemu_rf_state_transitions_total",
				Help: "Total RF sub-state-machine transitions by origin and destination state.",
			},
			[]string{"from", "to"},
		),
		endpointCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfcemu_re_endpoints",
				Help: "Number of remote endpoints currently registered with the controller.",
			},
		),
		activeEndpoint: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfcemu_re_active",
				Help: "Whether a remote endpoint is currently selected (1) or not (0).",
			},
		),
	}
}

func (m *nciMetrics) RecordCommand(gid, oid, status byte) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(
		fmt.Sprintf("0x%02x", gid),
		fmt.Sprintf("0x%02x", oid),
		fmt.Sprintf("0x%02x", status),
	).Inc()
}

func (m *nciMetrics) RecordRFTransition(from, to string) {
	if m == nil {
		return
	}
	m.rfTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *nciMetrics) SetEndpointCount(n int) {
	if m == nil {
		return
	}
	m.endpointCount.Set(float64(n))
}

func (m *nciMetrics) SetActiveEndpoint(active bool) {
	if m == nil {
		return
	}
	if active {
		m.activeEndpoint.Set(1)
	} else {
		m.activeEndpoint.Set(0)
	}
}
