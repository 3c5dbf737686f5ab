package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/config"
)

// RatesFromConfig converts the loaded compensation settings. Float inputs
// are rounded to token precision before any arithmetic.
func RatesFromConfig(cfg config.Payout) (Rates, error) {
	rates := Rates{
		Currency:             cfg.Currency,
		MinimumTokens:        fromFloat(cfg.MinimumTokens),
		CPI:                  fromFloat(cfg.CPIRate),
		CPA:                  fromFloat(cfg.CPARate),
		CPS:                  fromFloat(cfg.CPSRate),
		RevSharePercentage:   fromFloat(cfg.RevSharePercentage),
		RevShareDurationDays: cfg.RevShareDurationDays,
		TierMultipliers:      make(map[string]decimal.Decimal, len(cfg.TierMultipliers)),
		RegionMultipliers:    make(map[string]decimal.Decimal, len(cfg.RegionMultipliers)),
	}
	if rates.Currency == "" {
		rates.Currency = DefaultRates().Currency
	}
	for _, name := range cfg.HybridComponents {
		m, err := models.ParseModel(name)
		if err != nil {
			return Rates{}, fmt.Errorf("hybrid component %q: %w", name, err)
		}
		if m == models.ModelHybrid {
			return Rates{}, fmt.Errorf("hybrid component %q: hybrid cannot nest", name)
		}
		rates.HybridComponents = append(rates.HybridComponents, m)
	}
	if len(rates.HybridComponents) == 0 {
		rates.HybridComponents = DefaultRates().HybridComponents
	}
	for tier, v := range cfg.TierMultipliers {
		rates.TierMultipliers[strings.ToLower(tier)] = decimal.NewFromFloat(v)
	}
	for region, v := range cfg.RegionMultipliers {
		rates.RegionMultipliers[strings.ToLower(region)] = decimal.NewFromFloat(v)
	}
	return rates, nil
}

func fromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(tokenPlaces)
}
