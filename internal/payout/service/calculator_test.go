package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	actor "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

type CalculatorSuite struct {
	suite.Suite
	records  recordSet
	profiles profileSet
	risk     *riskBoard
	calc     *Calculator
	now      time.Time
	ctx      context.Context
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func (s *CalculatorSuite) SetupTest() {
	s.records = recordSet{}
	s.profiles = profileSet{}
	s.risk = newRiskBoard()
	s.now = time.Date(2026, 6, 10, 15, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.calc = s.newCalculator(decimal.Zero)
}

func (s *CalculatorSuite) newCalculator(committed decimal.Decimal) *Calculator {
	calc, err := NewCalculator(s.records, s.profiles, s.risk, fixedCommitted(committed), DefaultRates())
	s.Require().NoError(err)
	return calc
}

func (s *CalculatorSuite) TestCPI() {
	actorID := id.NewActorID()
	s.records.add(actorID, 100, s.now.AddDate(0, 0, -3), nil)

	bd, err := s.calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.True(bd.Eligible)
	s.Empty(bd.Reason)
	s.Equal(100, bd.VerifiedRecords)
	s.Require().Len(bd.Components, 1)
	s.Equal(100, bd.Components[0].Count)
	s.True(decimal.NewFromInt(1000).Equal(bd.TotalTokens), bd.TotalTokens.String())
	s.True(bd.PayableTokens.Equal(bd.TotalTokens))
	s.Equal("2026-06-10", bd.AsOf)
	s.Equal("clean", bd.AccountStatus)
}

func (s *CalculatorSuite) TestBelowMinimum() {
	actorID := id.NewActorID()
	s.records.add(actorID, 50, s.now.AddDate(0, 0, -3), nil)

	bd, err := s.calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.False(bd.Eligible)
	s.True(decimal.NewFromInt(500).Equal(bd.TotalTokens))
	s.Contains(bd.Reason, "minimum")
	s.Contains(bd.Reason, "1000")
}

func (s *CalculatorSuite) TestBlockedActorIsIneligible() {
	actorID := id.NewActorID()
	s.records.add(actorID, 200, s.now.AddDate(0, 0, -3), nil)
	s.risk.set(actorID, risk.StatusBanned)

	bd, err := s.calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.False(bd.Eligible)
	s.Equal(reasonBlocked, bd.Reason)
	s.Equal("banned", bd.AccountStatus)
	s.True(decimal.NewFromInt(2000).Equal(bd.TotalTokens), "earnings are still reported")
}

func (s *CalculatorSuite) TestOnlyVerifiedCleanRecordsCount() {
	actorID := id.NewActorID()
	touch := s.now.AddDate(0, 0, -3)
	s.records.add(actorID, 10, touch, nil)
	s.records.add(actorID, 4, touch, func(r *attribution.Record) { r.Verified = false })
	s.records.add(actorID, 3, touch, func(r *attribution.Record) { r.Fraudulent = true })

	bd, err := s.calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.Equal(10, bd.VerifiedRecords)
	s.True(decimal.NewFromInt(100).Equal(bd.TotalTokens))
}

func (s *CalculatorSuite) TestHybridWithTier() {
	actorID := id.NewActorID()
	s.profiles[actorID] = actor.Profile{ActorID: actorID, Tier: actor.TierGold, Region: "eu"}
	inWindow := s.now.AddDate(0, 0, -30)
	kyc := s.now.AddDate(0, 0, -20)
	s.records.add(actorID, 10, inWindow, func(r *attribution.Record) {
		r.KYCCompletedAt = &kyc
		r.LifetimeRevenue = decimal.NewFromInt(100)
	})
	s.records[actorID][0].Premium = true
	s.records[actorID][1].Premium = true
	// Outside the revenue share window.
	s.records.add(actorID, 1, s.now.AddDate(0, 0, -200), func(r *attribution.Record) {
		r.LifetimeRevenue = decimal.NewFromInt(5000)
	})

	bd, err := s.calc.Calculate(s.ctx, actorID, models.ModelHybrid)
	s.Require().NoError(err)
	s.Require().Len(bd.Components, 4)

	byModel := map[models.Model]models.Component{}
	for _, c := range bd.Components {
		byModel[c.Model] = c
	}
	s.Equal(11, byModel[models.ModelCPI].Count)
	s.Equal(10, byModel[models.ModelCPA].Count)
	s.Equal(2, byModel[models.ModelCPS].Count)
	s.Equal(10, byModel[models.ModelRevShare].Count)
	s.True(decimal.NewFromInt(100).Equal(byModel[models.ModelRevShare].Amount))

	// 110 + 250 + 100 + 100 = 560, x1.25 gold
	s.True(decimal.NewFromInt(560).Equal(bd.BaseTokens), bd.BaseTokens.String())
	s.True(decimal.NewFromInt(700).Equal(bd.TotalTokens), bd.TotalTokens.String())
	s.Equal("gold", bd.Tier)
	s.True(decimal.NewFromInt(1).Equal(bd.RegionMultiplier))
	s.False(bd.Eligible)
}

func (s *CalculatorSuite) TestCommittedTokensAreDeducted() {
	actorID := id.NewActorID()
	s.records.add(actorID, 250, s.now.AddDate(0, 0, -3), nil)

	calc := s.newCalculator(decimal.NewFromInt(2000))
	bd, err := calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(2500).Equal(bd.TotalTokens))
	s.True(decimal.NewFromInt(500).Equal(bd.PayableTokens))
	s.False(bd.Eligible)

	calc = s.newCalculator(decimal.NewFromInt(9000))
	bd, err = calc.Calculate(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.True(bd.PayableTokens.IsZero())
}

func (s *CalculatorSuite) TestDeterministicWithinADay() {
	actorID := id.NewActorID()
	s.records.add(actorID, 120, s.now.AddDate(0, 0, -3), func(r *attribution.Record) {
		r.LifetimeRevenue = decimal.RequireFromString("12.34")
	})

	first, err := s.calc.Calculate(s.ctx, actorID, models.ModelHybrid)
	s.Require().NoError(err)
	laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(6*time.Hour))
	second, err := s.calc.Calculate(laterCtx, actorID, models.ModelHybrid)
	s.Require().NoError(err)

	a, err := json.Marshal(first)
	s.Require().NoError(err)
	b, err := json.Marshal(second)
	s.Require().NoError(err)
	s.Equal(string(a), string(b))
}

func (s *CalculatorSuite) TestValidation() {
	s.Run("unknown model", func() {
		_, err := s.calc.Calculate(s.ctx, id.NewActorID(), models.Model("CPM"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("nil actor", func() {
		_, err := s.calc.Calculate(s.ctx, id.ActorID{}, models.ModelCPI)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("constructor guards", func() {
		_, err := NewCalculator(nil, s.profiles, s.risk, fixedCommitted(decimal.Zero), DefaultRates())
		s.Error(err)
		_, err = NewCalculator(s.records, nil, s.risk, fixedCommitted(decimal.Zero), DefaultRates())
		s.Error(err)
		_, err = NewCalculator(s.records, s.profiles, nil, fixedCommitted(decimal.Zero), DefaultRates())
		s.Error(err)
		_, err = NewCalculator(s.records, s.profiles, s.risk, nil, DefaultRates())
		s.Error(err)
	})
}
