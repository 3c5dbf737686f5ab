package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for fraud sweeps.
type Metrics struct {
	// New signals persisted by type
	SignalsEmitted *prometheus.CounterVec

	// Records a detector could not evaluate, by detector
	RecordsSkipped *prometheus.CounterVec

	// Detector runs that panicked, by detector
	DetectorFailures *prometheus.CounterVec

	// Sweep wall time by kind: fast or ring
	SweepDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignalsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_fraud_signals_emitted_total",
			Help: "Fraud signals persisted by type",
		}, []string{"type"}),

		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_fraud_records_skipped_total",
			Help: "Records a detector skipped for missing fields",
		}, []string{"detector"}),

		DetectorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_fraud_detector_failures_total",
			Help: "Detector runs that failed",
		}, []string{"detector"}),

		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_fraud_sweep_duration_seconds",
			Help:    "Duration of fraud sweeps",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementEmitted(signalType string) {
	if m != nil {
		m.SignalsEmitted.WithLabelValues(signalType).Inc()
	}
}

func (m *Metrics) AddSkipped(detector string, n int) {
	if m != nil && n > 0 {
		m.RecordsSkipped.WithLabelValues(detector).Add(float64(n))
	}
}

func (m *Metrics) IncrementDetectorFailure(detector string) {
	if m != nil {
		m.DetectorFailures.WithLabelValues(detector).Inc()
	}
}

func (m *Metrics) ObserveSweep(kind string, d time.Duration) {
	if m != nil {
		m.SweepDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}
