// Package service keeps each actor's risk standing in step with the fraud
// signal set and drives enforcement when the standing worsens.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fraud "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Store persists versioned risk state.
type Store interface {
	Get(ctx context.Context, actorID id.ActorID) (*models.State, error)
	CompareAndSave(ctx context.Context, state models.State, expected int64) error
}

// Signals lists every signal recorded against an actor, reviews attached.
type Signals interface {
	ListByActor(ctx context.Context, actorID id.ActorID) ([]fraud.Signal, error)
}

// Ledger is the enforcement side of the attribution ledger.
type Ledger interface {
	FreezeActor(ctx context.Context, actorID id.ActorID, fraudScore float64) (int, error)
	MarkFraudulent(ctx context.Context, actorID id.ActorID, userIDs []id.UserID, fraudScore float64) (int, error)
	Unfreeze(ctx context.Context, actorID id.ActorID) (int, error)
}

// PayoutEnforcer holds the actor's open payout requests.
type PayoutEnforcer interface {
	HoldForRisk(ctx context.Context, actorID id.ActorID, status models.Status) error
}

const defaultLockTimeout = 5 * time.Second

type Engine struct {
	store   Store
	signals Signals
	ledger  Ledger
	locker  lock.Locker
	payouts PayoutEnforcer

	lockTimeout time.Duration
	logger      *slog.Logger
	auditor     audit.Emitter
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(e *Engine) { e.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLocker replaces the in-process sharded locker, e.g. with the Redis
// locker when several replicas recompute.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

func WithPayoutEnforcer(p PayoutEnforcer) Option {
	return func(e *Engine) { e.payouts = p }
}

func New(store Store, signals Signals, ledger Ledger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("risk store is required")
	}
	if signals == nil {
		return nil, errors.New("fraud signal source is required")
	}
	if ledger == nil {
		return nil, errors.New("attribution ledger is required")
	}
	e := &Engine{
		store:       store,
		signals:     signals,
		ledger:      ledger,
		locker:      lock.NewSharded(0),
		lockTimeout: defaultLockTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/service"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BindPayouts attaches the payout gate once it exists. The gate itself reads
// risk status, so the two are wired in two steps at startup.
func (e *Engine) BindPayouts(p PayoutEnforcer) {
	e.payouts = p
}

// Recompute rebuilds the actor's state from its signals. The status never
// improves here.
func (e *Engine) Recompute(ctx context.Context, actorID id.ActorID) (*models.State, error) {
	return e.recompute(ctx, actorID, false)
}

// RecomputeAfterOverturn is Recompute with recovery allowed: a better target
// moves the status back by one level.
func (e *Engine) RecomputeAfterOverturn(ctx context.Context, actorID id.ActorID) (*models.State, error) {
	return e.recompute(ctx, actorID, true)
}

func (e *Engine) recompute(ctx context.Context, actorID id.ActorID, recovery bool) (*models.State, error) {
	ctx, span := e.tracer.Start(ctx, "risk.recompute", trace.WithAttributes(
		attribute.String("risk.actor_id", actorID.String()),
		attribute.Bool("risk.recovery", recovery),
	))
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.ObserveRecompute(time.Since(start)) }()

	state, prev, err := e.recomputeLocked(ctx, actorID, recovery)
	if err != nil {
		e.metrics.IncrementRecompute("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Float64("risk.score", state.RiskScore),
		attribute.String("risk.status", string(state.Status)),
	)

	if state.Status == prev.Status {
		e.metrics.IncrementRecompute("unchanged")
		return state, nil
	}
	e.metrics.IncrementRecompute("changed")
	e.metrics.IncrementTransition(string(prev.Status), string(state.Status))
	audit.Log(ctx, e.logger, e.auditor, audit.Event{
		Category: audit.CategoryCompliance,
		ActorID:  actorID,
		Subject:  actorID.String(),
		Action:   string(audit.EventRiskStatusChanged),
		Decision: string(state.Status),
		Reason:   string(prev.Status),
	}, "risk_score", state.RiskScore, "signal_count", state.SignalCount)
	return state, nil
}

func (e *Engine) recomputeLocked(ctx context.Context, actorID id.ActorID, recovery bool) (*models.State, models.State, error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	release, err := e.locker.Lock(lockCtx, "risk:"+actorID.String())
	cancel()
	if err != nil {
		return nil, models.State{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "actor risk is busy")
	}
	defer release()

	prev, err := e.load(ctx, actorID)
	if err != nil {
		return nil, models.State{}, err
	}
	signals, err := e.signals.ListByActor(ctx, actorID)
	if err != nil {
		return nil, prev, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load actor signals")
	}

	score, active := models.Score(signals)
	next := models.State{
		ActorID:            actorID,
		RiskScore:          score,
		Status:             models.Next(prev.Status, models.StatusForScore(score), recovery),
		SignalCount:        active,
		Version:            prev.Version + 1,
		LastRecalculatedAt: requestcontext.Now(ctx),
	}

	// Enforcement first: if it fails the stored state stays behind and the
	// next recompute repeats the whole transition.
	if err := e.enforce(ctx, prev, next, signals); err != nil {
		return nil, prev, err
	}
	if err := e.store.CompareAndSave(ctx, next, prev.Version); err != nil {
		if errors.Is(err, sentinel.ErrStaleVersion) {
			return nil, prev, dErrors.Wrap(err, dErrors.CodeConflict, "risk state changed concurrently")
		}
		return nil, prev, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save risk state")
	}
	return &next, prev, nil
}

// enforce applies the side effects of moving from prev to next. Every call
// it makes is idempotent.
func (e *Engine) enforce(ctx context.Context, prev, next models.State, signals []fraud.Signal) error {
	worsened := next.Status.WorseThan(prev.Status)
	escalated := next.Status != models.StatusClean && next.RiskScore > prev.RiskScore

	switch {
	case worsened || escalated:
		if _, err := e.ledger.FreezeActor(ctx, next.ActorID, next.FraudScore()); err != nil {
			return err
		}
		if next.Status.Blocked() {
			if users := evidenceUsers(signals); len(users) > 0 {
				if _, err := e.ledger.MarkFraudulent(ctx, next.ActorID, users, next.FraudScore()); err != nil {
					return err
				}
			}
		}
		if e.payouts != nil {
			if err := e.payouts.HoldForRisk(ctx, next.ActorID, next.Status); err != nil {
				return err
			}
		}
	case next.Status == models.StatusClean && prev.Status != models.StatusClean:
		if _, err := e.ledger.Unfreeze(ctx, next.ActorID); err != nil {
			return err
		}
	}
	return nil
}

// Status is the actor's stored standing; actors never scored are clean.
func (e *Engine) Status(ctx context.Context, actorID id.ActorID) (models.Status, error) {
	st, err := e.load(ctx, actorID)
	if err != nil {
		return "", err
	}
	return st.Status, nil
}

// State returns the stored state, or an unsaved clean state for unknown
// actors.
func (e *Engine) State(ctx context.Context, actorID id.ActorID) (*models.State, error) {
	st, err := e.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Ensure returns the actor's state, creating the clean row when none exists.
func (e *Engine) Ensure(ctx context.Context, actorID id.ActorID) (*models.State, error) {
	st, err := e.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if st.Version > 0 {
		return &st, nil
	}
	st.Version = 1
	err = e.store.CompareAndSave(ctx, st, 0)
	switch {
	case err == nil:
		return &st, nil
	case errors.Is(err, sentinel.ErrStaleVersion):
		// Someone else created it first.
		return e.State(ctx, actorID)
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create risk state")
}

func (e *Engine) load(ctx context.Context, actorID id.ActorID) (models.State, error) {
	st, err := e.store.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewState(actorID, requestcontext.Now(ctx)), nil
		}
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load risk state")
	}
	return *st, nil
}

// evidenceUsers collects the users named by active signals.
func evidenceUsers(signals []fraud.Signal) []id.UserID {
	seen := map[id.UserID]struct{}{}
	var out []id.UserID
	for i := range signals {
		if !signals[i].Active() {
			continue
		}
		for _, u := range signals[i].Evidence.UserIDs {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				out = append(out, u)
			}
		}
	}
	return fraud.SortedUserIDs(out)
}
