// Package worker runs the periodic sweeps: detector passes, settlement
// retries and the outbox relay.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
)

// Job is one periodic task. Run should be safe to call again after a failure.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Periodic job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Periodic job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

func (m *metrics) observe(job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

// Scheduler runs every job on its own ticker until the context ends. When a
// locker is set, a run is skipped while another replica holds the job lock.
type Scheduler struct {
	jobs     []Job
	locker   lock.Locker
	lockWait time.Duration
	logger   *slog.Logger
	metrics  *metrics
	tracer   trace.Tracer
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithLocker(l lock.Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Scheduler) { s.metrics = newMetrics(reg) }
}

func New(jobs []Job, opts ...Option) (*Scheduler, error) {
	for _, j := range jobs {
		if j.Name == "" || j.Run == nil {
			return nil, errors.New("job name and run func are required")
		}
		if j.Interval <= 0 {
			return nil, fmt.Errorf("job %s: interval must be positive", j.Name)
		}
	}
	s := &Scheduler{
		jobs:     jobs,
		lockWait: 100 * time.Millisecond,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/worker"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until ctx is cancelled. Job failures are logged and never stop
// the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunNow(ctx, job)
		}
	}
}

// RunNow runs job once under its lock and reports whether it ran.
func (s *Scheduler) RunNow(ctx context.Context, job Job) bool {
	if s.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		release, err := s.locker.Lock(lockCtx, "job:"+job.Name)
		cancel()
		if err != nil {
			s.metrics.observe(job.Name, "skipped", 0)
			return false
		}
		defer release()
	}

	ctx, span := s.tracer.Start(ctx, "worker."+job.Name)
	defer span.End()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		s.metrics.observe(job.Name, "failed", elapsed)
		s.logger.ErrorContext(ctx, "periodic job failed",
			"job", job.Name,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return true
	}
	s.metrics.observe(job.Name, "ok", elapsed)
	s.logger.DebugContext(ctx, "periodic job finished", "job", job.Name, "duration_ms", elapsed.Milliseconds())
	return true
}
