package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

type ActorStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestActorStoreSuite(t *testing.T) {
	suite.Run(t, new(ActorStoreSuite))
}

func (s *ActorStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ActorStoreSuite) profile(code string) models.Profile {
	return models.Profile{
		ActorID:       id.ActorID(uuid.New()),
		AccountUserID: id.UserID(uuid.New()),
		ReferralCode:  code,
		Tier:          models.TierGold,
	}
}

func (s *ActorStoreSuite) TestUpsertAndLookups() {
	p := s.profile("ANNA2024")
	s.Require().NoError(s.store.Upsert(s.ctx, p))

	s.Run("get by actor", func() {
		got, err := s.store.Get(s.ctx, p.ActorID)
		s.Require().NoError(err)
		s.Equal(models.TierGold, got.Tier)
	})

	s.Run("find by referral code", func() {
		got, err := s.store.FindByReferralCode(s.ctx, "ANNA2024")
		s.Require().NoError(err)
		s.Equal(p.ActorID, got.ActorID)
	})

	s.Run("unknown actor is not found", func() {
		_, err := s.store.Get(s.ctx, id.ActorID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("account users skips actors without profile", func() {
		other := id.ActorID(uuid.New())
		m, err := s.store.AccountUsers(s.ctx, []id.ActorID{p.ActorID, other})
		s.Require().NoError(err)
		s.Equal(map[id.ActorID]id.UserID{p.ActorID: p.AccountUserID}, m)
	})
}

func (s *ActorStoreSuite) TestReferralCodeUniqueness() {
	a := s.profile("SHARED")
	s.Require().NoError(s.store.Upsert(s.ctx, a))

	s.Run("another actor cannot take the code", func() {
		b := s.profile("SHARED")
		s.ErrorIs(s.store.Upsert(s.ctx, b), sentinel.ErrConflict)
	})

	s.Run("renaming frees the old code", func() {
		a.ReferralCode = "RENAMED"
		s.Require().NoError(s.store.Upsert(s.ctx, a))
		b := s.profile("SHARED")
		s.NoError(s.store.Upsert(s.ctx, b))
	})
}
