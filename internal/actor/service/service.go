// Package service manages actor profiles: tier, region, referral code and the
// actor's own user account.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

type Store interface {
	Upsert(ctx context.Context, p models.Profile) error
	Get(ctx context.Context, actorID id.ActorID) (*models.Profile, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Profile, error)
	AccountUsers(ctx context.Context, actorIDs []id.ActorID) (map[id.ActorID]id.UserID, error)
}

type Service struct {
	store   Store
	logger  *slog.Logger
	auditor audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(s *Service) { s.auditor = p }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("actor store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Upsert(ctx context.Context, p models.Profile) (*models.Profile, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Upsert(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "referral code already assigned to another actor")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save actor profile")
	}
	audit.Log(ctx, s.logger, s.auditor, audit.Event{
		Category: audit.CategoryOperations,
		ActorID:  p.ActorID,
		Subject:  p.ActorID.String(),
		Action:   string(audit.EventActorProfileUpdate),
		Decision: string(p.Tier),
		Operator: requestcontext.AdminSubject(ctx),
	})
	return &p, nil
}

// Profile returns the stored profile or the standard-tier default.
func (s *Service) Profile(ctx context.Context, actorID id.ActorID) (models.Profile, error) {
	p, err := s.store.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.DefaultProfile(actorID), nil
		}
		return models.Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor profile")
	}
	return *p, nil
}

// ResolveReferralCode maps a referral code to its actor.
func (s *Service) ResolveReferralCode(ctx context.Context, code string) (id.ActorID, error) {
	p, err := s.store.FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ActorID{}, dErrors.New(dErrors.CodeValidation, "unknown referral code")
		}
		return id.ActorID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve referral code")
	}
	return p.ActorID, nil
}

func (s *Service) AccountUsers(ctx context.Context, actorIDs []id.ActorID) (map[id.ActorID]id.UserID, error) {
	m, err := s.store.AccountUsers(ctx, actorIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor accounts")
	}
	return m, nil
}
