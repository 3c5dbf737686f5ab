package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attribution ledger.
type Metrics struct {
	// First-touch locks by outcome: created or existing
	Locks *prometheus.CounterVec

	// Funnel stage transitions that actually changed a record
	FunnelAdvances *prometheus.CounterVec

	// Enforcement writes by action: frozen, unfrozen, fraudulent
	Enforcement *prometheus.CounterVec
}

// New registers attribution metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Locks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_attribution_locks_total",
			Help: "First-touch attribution locks by outcome",
		}, []string{"outcome"}),

		FunnelAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_attribution_funnel_advances_total",
			Help: "Funnel stage timestamps written",
		}, []string{"stage"}),

		Enforcement: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_attribution_enforcement_total",
			Help: "Attribution records changed by risk enforcement",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncrementLock(created bool) {
	if m == nil {
		return
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	m.Locks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementFunnel(stage string) {
	if m != nil {
		m.FunnelAdvances.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) AddEnforcement(action string, n int) {
	if m != nil && n > 0 {
		m.Enforcement.WithLabelValues(action).Add(float64(n))
	}
}
