// Package service owns the attribution ledger: first-touch locking, funnel
// progression, revenue accrual and the enforcement writes issued by the risk
// engine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

// Store is the persistence port. Every mutation must be atomic on its own:
// the ledger never reads-then-writes.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec models.Record) (models.Record, bool, error)
	Get(ctx context.Context, userID id.UserID) (*models.Record, error)
	AdvanceFunnel(ctx context.Context, userID id.UserID, stage models.Stage, at time.Time) (bool, error)
	AddRevenue(ctx context.Context, userID id.UserID, amount decimal.Decimal) error
	AccrueRevenue(ctx context.Context, e models.Event, amount decimal.Decimal) (bool, error)
	SetPremium(ctx context.Context, userID id.UserID, premium bool) error
	Freeze(ctx context.Context, userID id.UserID, fraudScore float64) (bool, error)
	FreezeUnverifiedByActor(ctx context.Context, actorID id.ActorID, fraudScore float64) (int, error)
	MarkFraudulent(ctx context.Context, actorID id.ActorID, userIDs []id.UserID, fraudScore float64) (int, error)
	UnfreezeByActor(ctx context.Context, actorID id.ActorID) (int, error)
	Verify(ctx context.Context, userIDs []id.UserID) (int, error)
	ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Record, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Record, error)
	ListUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]models.Record, error)
	AppendEvent(ctx context.Context, e models.Event) error
	ListEventsSince(ctx context.Context, since time.Time) ([]models.Event, error)
}

type Ledger struct {
	store   Store
	logger  *slog.Logger
	auditor audit.Emitter
	metrics *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(l *Ledger) { l.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("attribution store is required")
	}
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LockAttribution binds the user to the actor on first touch. A second touch,
// whichever actor it names, returns the existing record with created=false.
func (l *Ledger) LockAttribution(ctx context.Context, req models.LockRequest) (models.Record, bool, error) {
	if err := validateLock(req); err != nil {
		return models.Record{}, false, err
	}
	rec := models.Record{
		ID:              id.NewAttributionID(),
		UserID:          req.UserID,
		ActorID:         req.ActorID,
		Method:          req.Method,
		Provenance:      req.Provenance,
		LifetimeRevenue: decimal.Zero,
		Locked:          true,
	}
	rec.Provenance.FirstTouchAt = rec.Provenance.FirstTouchAt.UTC()

	stored, created, err := l.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return models.Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock attribution")
	}
	l.metrics.IncrementLock(created)
	if created {
		audit.Log(ctx, l.logger, l.auditor, audit.Event{
			ActorID:  stored.ActorID,
			Subject:  stored.UserID.String(),
			Action:   string(audit.EventAttributionLocked),
			Decision: string(stored.Method),
		})
	} else if stored.ActorID != req.ActorID {
		l.logger.InfoContext(ctx, "re-attribution ignored",
			"user_id", req.UserID.String(),
			"locked_actor_id", stored.ActorID.String(),
			"requested_actor_id", req.ActorID.String(),
		)
	}
	return stored, created, nil
}

func validateLock(req models.LockRequest) error {
	if req.UserID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if req.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	if !req.Method.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "method must be one of code, qr, event-checkin, link")
	}
	if req.Provenance.FirstTouchAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "first touch timestamp is required")
	}
	p := req.Provenance
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return dErrors.New(dErrors.CodeValidation, "latitude and longitude must be given together")
	}
	if p.HasLocation() && (*p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180) {
		return dErrors.New(dErrors.CodeValidation, "coordinates out of range")
	}
	return nil
}

// AdvanceFunnel records a funnel stage once. Late or repeated stages are a
// no-op and report false.
func (l *Ledger) AdvanceFunnel(ctx context.Context, userID id.UserID, stage models.Stage, at time.Time) (bool, error) {
	if !stage.IsValid() {
		return false, dErrors.New(dErrors.CodeValidation, "unknown funnel stage")
	}
	advanced, err := l.store.AdvanceFunnel(ctx, userID, stage, at.UTC())
	if err != nil {
		return false, translate(err, "failed to advance funnel")
	}
	if advanced {
		l.metrics.IncrementFunnel(string(stage))
	}
	return advanced, nil
}

func (l *Ledger) RecordRevenue(ctx context.Context, userID id.UserID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "revenue amount must be positive")
	}
	if err := l.store.AddRevenue(ctx, userID, amount); err != nil {
		return translate(err, "failed to record revenue")
	}
	return nil
}

// AccrueRevenue appends the purchase event and adds its amount, at most once
// per event id. It reports whether the amount was added.
func (l *Ledger) AccrueRevenue(ctx context.Context, e models.Event, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, dErrors.New(dErrors.CodeValidation, "revenue amount must be positive")
	}
	if e.ID == (id.EventID{}) {
		return false, dErrors.New(dErrors.CodeValidation, "revenue event id is required")
	}
	e.OccurredAt = e.OccurredAt.UTC()
	applied, err := l.store.AccrueRevenue(ctx, e, amount)
	if err != nil {
		return false, translate(err, "failed to record revenue")
	}
	return applied, nil
}

func (l *Ledger) SetPremium(ctx context.Context, userID id.UserID, premium bool) error {
	if err := l.store.SetPremium(ctx, userID, premium); err != nil {
		return translate(err, "failed to update premium flag")
	}
	return nil
}

func (l *Ledger) AppendEvent(ctx context.Context, e models.Event) error {
	if e.ID == (id.EventID{}) {
		e.ID = id.NewEventID()
	}
	e.OccurredAt = e.OccurredAt.UTC()
	if err := l.store.AppendEvent(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append attribution event")
	}
	return nil
}

// Freeze suspends a single record pending review.
func (l *Ledger) Freeze(ctx context.Context, userID id.UserID, fraudScore float64) error {
	changed, err := l.store.Freeze(ctx, userID, fraudScore)
	if err != nil {
		return translate(err, "failed to freeze attribution")
	}
	if changed {
		l.metrics.AddEnforcement("frozen", 1)
		audit.Log(ctx, l.logger, l.auditor, audit.Event{
			Subject: userID.String(),
			Action:  string(audit.EventAttributionFrozen),
		})
	}
	return nil
}

// FreezeActor freezes every unverified record referred by the actor.
func (l *Ledger) FreezeActor(ctx context.Context, actorID id.ActorID, fraudScore float64) (int, error) {
	n, err := l.store.FreezeUnverifiedByActor(ctx, actorID, fraudScore)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to freeze actor attributions")
	}
	l.metrics.AddEnforcement("frozen", n)
	if n > 0 {
		audit.Log(ctx, l.logger, l.auditor, audit.Event{
			ActorID: actorID,
			Subject: actorID.String(),
			Action:  string(audit.EventAttributionFrozen),
		}, "records", n)
	}
	return n, nil
}

// MarkFraudulent flags records named in signal evidence. Users that are not
// attributed to actorID are ignored.
func (l *Ledger) MarkFraudulent(ctx context.Context, actorID id.ActorID, userIDs []id.UserID, fraudScore float64) (int, error) {
	n, err := l.store.MarkFraudulent(ctx, actorID, userIDs, fraudScore)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark attributions fraudulent")
	}
	l.metrics.AddEnforcement("fraudulent", n)
	if n > 0 {
		audit.Log(ctx, l.logger, l.auditor, audit.Event{
			ActorID: actorID,
			Subject: actorID.String(),
			Action:  string(audit.EventAttributionFraud),
		}, "records", n)
	}
	return n, nil
}

// Unfreeze releases the actor's frozen records that were never judged
// fraudulent.
func (l *Ledger) Unfreeze(ctx context.Context, actorID id.ActorID) (int, error) {
	n, err := l.store.UnfreezeByActor(ctx, actorID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unfreeze actor attributions")
	}
	l.metrics.AddEnforcement("unfrozen", n)
	if n > 0 {
		audit.Log(ctx, l.logger, l.auditor, audit.Event{
			ActorID: actorID,
			Subject: actorID.String(),
			Action:  string(audit.EventAttributionUnfrozen),
		}, "records", n)
	}
	return n, nil
}

func (l *Ledger) Verify(ctx context.Context, userIDs []id.UserID) (int, error) {
	n, err := l.store.Verify(ctx, userIDs)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify attributions")
	}
	return n, nil
}

func (l *Ledger) Get(ctx context.Context, userID id.UserID) (*models.Record, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to load attribution")
	}
	return rec, nil
}

func (l *Ledger) ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Record, error) {
	recs, err := l.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attributions")
	}
	return recs, nil
}

func (l *Ledger) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Record, error) {
	recs, err := l.store.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attributions")
	}
	return recs, nil
}

func (l *Ledger) ListUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]models.Record, error) {
	recs, err := l.store.ListUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list unverified attributions")
	}
	return recs, nil
}

func (l *Ledger) ListEventsSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	events, err := l.store.ListEventsSince(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attribution events")
	}
	return events, nil
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "attribution not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
