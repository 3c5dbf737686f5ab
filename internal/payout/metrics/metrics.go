package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for payout requests and settlement.
type Metrics struct {
	// Request outcomes: approved, held, conflict, blocked
	Requests *prometheus.CounterVec

	// Admin decisions: approve or reject
	Decisions *prometheus.CounterVec

	// Open requests moved to review by the risk engine
	RiskHolds prometheus.Counter

	// Settlement outcomes: settled, failed, breaker_open
	Settlements *prometheus.CounterVec

	// Wall time of one settlement including retries
	SettlementDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_payout_requests_total",
			Help: "Payout request attempts by outcome",
		}, []string{"outcome"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_payout_decisions_total",
			Help: "Admin decisions on held payout requests",
		}, []string{"decision"}),

		RiskHolds: f.NewCounter(prometheus.CounterOpts{
			Name: "engine_payout_risk_holds_total",
			Help: "Payout requests held after a risk status change",
		}),

		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_payout_settlements_total",
			Help: "Wallet settlement attempts by outcome",
		}, []string{"outcome"}),

		SettlementDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_payout_settlement_duration_seconds",
			Help:    "Time spent settling one payout request",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementRequest(outcome string) {
	if m != nil {
		m.Requests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncrementRiskHold() {
	if m != nil {
		m.RiskHolds.Inc()
	}
}

func (m *Metrics) ObserveSettlement(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
	m.SettlementDuration.Observe(d.Seconds())
}
