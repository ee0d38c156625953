package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for admission control.
// A nil *Metrics is valid and records nothing, which keeps tests free
// of registry bookkeeping.
type Metrics struct {
	decisions     *prometheus.CounterVec
	backendErrors prometheus.Counter
	degradedMode  prometheus.Gauge
}

// NewMetrics registers collectors on the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usage_gov_ratelimit_decisions_total",
				Help: "Rate limit decisions by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		backendErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "usage_gov_ratelimit_backend_errors_total",
				Help: "Counter store failures that triggered fail-open decisions",
			},
		),
		degradedMode: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "usage_gov_ratelimit_degraded_mode",
				Help: "1 when the limiter only has single-process counter scope",
			},
		),
	}
}

func (m *Metrics) recordDecision(policy, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) recordBackendError() {
	if m == nil {
		return
	}
	m.backendErrors.Inc()
}

// SetDegraded publishes whether the limiter runs on the in-process store.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.degradedMode.Set(1)
	} else {
		m.degradedMode.Set(0)
	}
}
