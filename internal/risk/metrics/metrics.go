package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for risk recomputation.
type Metrics struct {
	Recomputes        *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_risk_recomputes_total",
			Help: "Risk recomputations by outcome: changed, unchanged or failed",
		}, []string{"outcome"}),

		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_risk_status_transitions_total",
			Help: "Account status transitions",
		}, []string{"from", "to"}),

		RecomputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_risk_recompute_duration_seconds",
			Help:    "Time spent recomputing one actor including enforcement",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementRecompute(outcome string) {
	if m != nil {
		m.Recomputes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) ObserveRecompute(d time.Duration) {
	if m != nil {
		m.RecomputeDuration.Observe(d.Seconds())
	}
}
