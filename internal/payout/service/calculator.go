package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	actor "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

const (
	reasonBlocked = "account suspended or banned"
	tokenPlaces   = 2
)

// Rates holds the compensation parameters. Multiplier maps fall back to 1
// for unknown tiers and regions.
type Rates struct {
	Currency             string
	MinimumTokens        decimal.Decimal
	CPI                  decimal.Decimal
	CPA                  decimal.Decimal
	CPS                  decimal.Decimal
	RevSharePercentage   decimal.Decimal
	RevShareDurationDays int
	HybridComponents     []models.Model
	TierMultipliers      map[string]decimal.Decimal
	RegionMultipliers    map[string]decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		Currency:             "TOKEN",
		MinimumTokens:        decimal.NewFromInt(1000),
		CPI:                  decimal.NewFromInt(10),
		CPA:                  decimal.NewFromInt(25),
		CPS:                  decimal.NewFromInt(50),
		RevSharePercentage:   decimal.NewFromInt(10),
		RevShareDurationDays: 180,
		HybridComponents:     []models.Model{models.ModelCPI, models.ModelCPA, models.ModelCPS, models.ModelRevShare},
		TierMultipliers: map[string]decimal.Decimal{
			string(actor.TierStandard): decimal.NewFromInt(1),
			string(actor.TierSilver):   decimal.RequireFromString("1.1"),
			string(actor.TierGold):     decimal.RequireFromString("1.25"),
			string(actor.TierPlatinum): decimal.RequireFromString("1.5"),
		},
	}
}

// Records reads the actor's attributions.
type Records interface {
	ListByActor(ctx context.Context, actorID id.ActorID) ([]attribution.Record, error)
}

// Profiles resolves tier and region.
type Profiles interface {
	Profile(ctx context.Context, actorID id.ActorID) (actor.Profile, error)
}

// RiskReader reads the actor's standing.
type RiskReader interface {
	Status(ctx context.Context, actorID id.ActorID) (risk.Status, error)
}

// Committed sums tokens already promised by settled or open requests.
type Committed interface {
	CommittedTokens(ctx context.Context, actorID id.ActorID) (decimal.Decimal, error)
}

// Calculator computes earnings. It only reads, so it is safe to call
// concurrently and to poll.
type Calculator struct {
	records   Records
	profiles  Profiles
	risk      RiskReader
	committed Committed
	rates     Rates
}

func NewCalculator(records Records, profiles Profiles, riskReader RiskReader, committed Committed, rates Rates) (*Calculator, error) {
	if records == nil {
		return nil, errors.New("attribution records are required")
	}
	if profiles == nil {
		return nil, errors.New("actor profiles are required")
	}
	if riskReader == nil {
		return nil, errors.New("risk reader is required")
	}
	if committed == nil {
		return nil, errors.New("committed token source is required")
	}
	return &Calculator{records: records, profiles: profiles, risk: riskReader, committed: committed, rates: rates}, nil
}

// Calculate returns the actor's breakdown for model as of the UTC day of the
// request clock. Two calls on the same day with no writes in between return
// identical breakdowns.
func (c *Calculator) Calculate(ctx context.Context, actorID id.ActorID, model models.Model) (*models.Breakdown, error) {
	if actorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	day := startOfDay(requestcontext.Now(ctx))

	all, err := c.records.ListByActor(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attributions")
	}
	profile, err := c.profiles.Profile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	status, err := c.risk.Status(ctx, actorID)
	if err != nil {
		return nil, err
	}
	committed, err := c.committed.CommittedTokens(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load committed payouts")
	}

	verified := make([]attribution.Record, 0, len(all))
	for _, rec := range all {
		if rec.Verified && !rec.Fraudulent {
			verified = append(verified, rec)
		}
	}

	components, err := c.components(model, verified, day)
	if err != nil {
		return nil, err
	}
	base := decimal.Zero
	for _, comp := range components {
		base = base.Add(comp.Amount)
	}

	tierMult := multiplier(c.rates.TierMultipliers, string(profile.Tier))
	regionMult := multiplier(c.rates.RegionMultipliers, profile.Region)
	total := base.Mul(tierMult).Mul(regionMult).Truncate(tokenPlaces)
	payable := total.Sub(committed)
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	bd := &models.Breakdown{
		ActorID:          actorID,
		Model:            model,
		AsOf:             day.Format(time.DateOnly),
		VerifiedRecords:  len(verified),
		Components:       components,
		BaseTokens:       base.Truncate(tokenPlaces),
		Tier:             string(profile.Tier),
		TierMultiplier:   tierMult,
		Region:           profile.Region,
		RegionMultiplier: regionMult,
		TotalTokens:      total,
		CommittedTokens:  committed,
		PayableTokens:    payable,
		MinimumTokens:    c.rates.MinimumTokens,
		Currency:         c.rates.Currency,
		AccountStatus:    string(status),
	}
	switch {
	case status.Blocked():
		bd.Reason = reasonBlocked
	case payable.LessThan(c.rates.MinimumTokens):
		bd.Reason = fmt.Sprintf("minimum payout is %s tokens", c.rates.MinimumTokens.String())
	default:
		bd.Eligible = true
	}
	return bd, nil
}

func (c *Calculator) components(model models.Model, records []attribution.Record, day time.Time) ([]models.Component, error) {
	switch model {
	case models.ModelCPI, models.ModelCPA, models.ModelCPS, models.ModelRevShare:
		return []models.Component{c.component(model, records, day)}, nil
	case models.ModelHybrid:
		out := make([]models.Component, 0, len(c.rates.HybridComponents))
		for _, m := range c.rates.HybridComponents {
			out = append(out, c.component(m, records, day))
		}
		return out, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "model must be one of CPI, CPA, CPS, RevShare, hybrid")
}

func (c *Calculator) component(model models.Model, records []attribution.Record, day time.Time) models.Component {
	comp := models.Component{Model: model}
	count := func(keep func(attribution.Record) bool) {
		for _, r := range records {
			if keep(r) {
				comp.Count++
			}
		}
	}
	switch model {
	case models.ModelCPI:
		count(func(r attribution.Record) bool { return r.RegisteredAt != nil })
		comp.Rate = c.rates.CPI
	case models.ModelCPA:
		count(func(r attribution.Record) bool { return r.KYCCompletedAt != nil })
		comp.Rate = c.rates.CPA
	case models.ModelCPS:
		count(func(r attribution.Record) bool { return r.Premium })
		comp.Rate = c.rates.CPS
	case models.ModelRevShare:
		since := day.AddDate(0, 0, -c.rates.RevShareDurationDays)
		revenue := decimal.Zero
		for _, r := range records {
			if !r.Provenance.FirstTouchAt.Before(since) {
				comp.Count++
				revenue = revenue.Add(r.LifetimeRevenue)
			}
		}
		comp.Rate = c.rates.RevSharePercentage
		comp.Amount = revenue.Mul(c.rates.RevSharePercentage).Div(decimal.NewFromInt(100)).Truncate(tokenPlaces)
		return comp
	}
	comp.Amount = comp.Rate.Mul(decimal.NewFromInt(int64(comp.Count)))
	return comp
}

// multiplier looks keys up case-insensitively; config loading lowercases them.
func multiplier(m map[string]decimal.Decimal, key string) decimal.Decimal {
	if v, ok := m[strings.ToLower(key)]; ok {
		return v
	}
	return decimal.NewFromInt(1)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
