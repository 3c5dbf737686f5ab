// Package service applies normalized ingest events to the attribution
// ledger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// Ledger is the subset of the attribution ledger ingest writes through.
type Ledger interface {
	LockAttribution(ctx context.Context, req attribution.LockRequest) (attribution.Record, bool, error)
	Get(ctx context.Context, userID id.UserID) (*attribution.Record, error)
	AdvanceFunnel(ctx context.Context, userID id.UserID, stage attribution.Stage, at time.Time) (bool, error)
	AccrueRevenue(ctx context.Context, e attribution.Event, amount decimal.Decimal) (bool, error)
	SetPremium(ctx context.Context, userID id.UserID, premium bool) error
	AppendEvent(ctx context.Context, e attribution.Event) error
}

// ActorResolver maps referral codes to actors.
type ActorResolver interface {
	ResolveReferralCode(ctx context.Context, code string) (id.ActorID, error)
}

// Identity confirms KYC status with the external identity service.
type Identity interface {
	IsVerified(ctx context.Context, userID id.UserID) (bool, error)
}

// TrackResult is what the caller learns about the user's attribution.
type TrackResult struct {
	AttributionID id.AttributionID
	ActorID       id.ActorID
	Created       bool
	Advanced      bool
}

type Service struct {
	ledger   Ledger
	actors   ActorResolver
	identity Identity
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIdentity makes KYC stages conditional on the identity service. Without
// it kyc_completed events are trusted as sent.
func WithIdentity(identity Identity) Option {
	return func(s *Service) { s.identity = identity }
}

func New(ledger Ledger, actors ActorResolver, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("attribution ledger is required")
	}
	if actors == nil {
		return nil, errors.New("actor resolver is required")
	}
	s := &Service{ledger: ledger, actors: actors, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TrackRaw normalizes and applies a connector payload.
func (s *Service) TrackRaw(ctx context.Context, raw models.RawEvent) (TrackResult, error) {
	event, err := models.Normalize(raw)
	if err != nil {
		return TrackResult{}, err
	}
	return s.Track(ctx, event)
}

// Track applies one event. Every ledger write it issues is idempotent, and
// revenue is accrued once per event id, so a redelivered event is safe once
// its id is stable. Events without an id get a fresh one.
func (s *Service) Track(ctx context.Context, event models.Event) (TrackResult, error) {
	if t, ok := event.(models.Touch); ok {
		return s.touch(ctx, t)
	}

	meta := event.Meta()
	if meta.EventID == (id.EventID{}) {
		meta.EventID = id.NewEventID()
	}
	rec, err := s.ledger.Get(ctx, meta.UserID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return TrackResult{}, dErrors.New(dErrors.CodeValidation, "user has no attribution")
		}
		return TrackResult{}, err
	}
	result := TrackResult{AttributionID: rec.ID, ActorID: rec.ActorID}

	var (
		kind     attribution.EventKind
		recorded bool
	)
	switch e := event.(type) {
	case models.Milestone:
		kind = attribution.EventKind(e.Stage)
		result.Advanced, err = s.milestone(ctx, e)
	case models.Purchase:
		kind = attribution.EventPurchase
		if e.First {
			kind = attribution.EventFirstPurchase
			result.Advanced, err = s.ledger.AdvanceFunnel(ctx, meta.UserID, attribution.StageFirstPurchase, meta.At)
		}
		if err == nil && e.Amount.IsPositive() {
			// The event row is the accrual's idempotency key.
			recorded = true
			_, err = s.ledger.AccrueRevenue(ctx, ledgerEvent(meta, rec.ActorID, kind), e.Amount)
		}
	case models.Session:
		kind = attribution.EventSession
	case models.Subscription:
		kind = attribution.EventSubscription
		err = s.ledger.SetPremium(ctx, meta.UserID, e.Premium)
	default:
		return TrackResult{}, dErrors.New(dErrors.CodeValidation, "unsupported event type")
	}
	if err != nil {
		return TrackResult{}, err
	}
	if !recorded {
		if err := s.appendEvent(ctx, meta, rec.ActorID, kind); err != nil {
			return TrackResult{}, err
		}
	}
	return result, nil
}

func (s *Service) touch(ctx context.Context, t models.Touch) (TrackResult, error) {
	actorID := t.ActorID
	if actorID.IsNil() {
		resolved, err := s.actors.ResolveReferralCode(ctx, t.ReferralCode)
		if err != nil {
			return TrackResult{}, err
		}
		actorID = resolved
	}
	rec, created, err := s.ledger.LockAttribution(ctx, attribution.LockRequest{
		UserID:  t.UserID,
		ActorID: actorID,
		Method:  t.Method,
		Provenance: attribution.Provenance{
			DeviceID:     t.DeviceID,
			IP:           t.IP,
			Latitude:     t.Latitude,
			Longitude:    t.Longitude,
			FirstTouchAt: t.At,
		},
	})
	if err != nil {
		return TrackResult{}, err
	}
	if err := s.appendEvent(ctx, t.Envelope, rec.ActorID, t.Kind); err != nil {
		return TrackResult{}, err
	}
	return TrackResult{AttributionID: rec.ID, ActorID: rec.ActorID, Created: created}, nil
}

// milestone advances registered and first_chat directly. KYC is confirmed
// against the identity service when one is configured, and a registration
// also picks up an already completed KYC.
func (s *Service) milestone(ctx context.Context, m models.Milestone) (bool, error) {
	switch m.Stage {
	case attribution.StageRegistered:
		advanced, err := s.ledger.AdvanceFunnel(ctx, m.UserID, m.Stage, m.At)
		if err != nil || s.identity == nil {
			return advanced, err
		}
		if _, err := s.advanceKYCIfVerified(ctx, m.UserID, m.At); err != nil {
			return advanced, err
		}
		return advanced, nil
	case attribution.StageKYCCompleted:
		if s.identity == nil {
			return s.ledger.AdvanceFunnel(ctx, m.UserID, m.Stage, m.At)
		}
		return s.advanceKYCIfVerified(ctx, m.UserID, m.At)
	default:
		return s.ledger.AdvanceFunnel(ctx, m.UserID, m.Stage, m.At)
	}
}

func (s *Service) advanceKYCIfVerified(ctx context.Context, userID id.UserID, at time.Time) (bool, error) {
	verified, err := s.identity.IsVerified(ctx, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity service unavailable")
	}
	if !verified {
		s.logger.InfoContext(ctx, "kyc not confirmed by identity service", "user_id", userID.String())
		return false, nil
	}
	return s.ledger.AdvanceFunnel(ctx, userID, attribution.StageKYCCompleted, at)
}

func (s *Service) appendEvent(ctx context.Context, meta models.Envelope, actorID id.ActorID, kind attribution.EventKind) error {
	return s.ledger.AppendEvent(ctx, ledgerEvent(meta, actorID, kind))
}

func ledgerEvent(meta models.Envelope, actorID id.ActorID, kind attribution.EventKind) attribution.Event {
	return attribution.Event{
		ID:         meta.EventID,
		UserID:     meta.UserID,
		ActorID:    actorID,
		Kind:       kind,
		DeviceID:   meta.DeviceID,
		IP:         meta.IP,
		OccurredAt: meta.At,
	}
}
