package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/config"
)

func TestRatesFromConfig(t *testing.T) {
	t.Run("converts and normalizes", func(t *testing.T) {
		rates, err := RatesFromConfig(config.Payout{
			MinimumTokens:        500,
			CPIRate:              12.5,
			CPARate:              25,
			CPSRate:              50,
			RevSharePercentage:   7.5,
			RevShareDurationDays: 90,
			HybridComponents:     []string{"cpi", "RevShare"},
			TierMultipliers:      map[string]float64{"Gold": 1.25},
			RegionMultipliers:    map[string]float64{"BR": 0.8},
		})
		require.NoError(t, err)
		assert.Equal(t, "TOKEN", rates.Currency)
		assert.True(t, decimal.RequireFromString("12.5").Equal(rates.CPI))
		assert.True(t, decimal.NewFromInt(500).Equal(rates.MinimumTokens))
		assert.Equal(t, []models.Model{models.ModelCPI, models.ModelRevShare}, rates.HybridComponents)
		assert.True(t, decimal.RequireFromString("1.25").Equal(rates.TierMultipliers["gold"]))
		assert.True(t, decimal.RequireFromString("0.8").Equal(multiplier(rates.RegionMultipliers, "br")))
		assert.True(t, decimal.NewFromInt(1).Equal(multiplier(rates.RegionMultipliers, "us")))
	})

	t.Run("defaults hybrid components", func(t *testing.T) {
		rates, err := RatesFromConfig(config.Payout{Currency: "USD"})
		require.NoError(t, err)
		assert.Equal(t, "USD", rates.Currency)
		assert.Len(t, rates.HybridComponents, 4)
	})

	t.Run("rejects unknown or nested components", func(t *testing.T) {
		_, err := RatesFromConfig(config.Payout{HybridComponents: []string{"CPM"}})
		assert.Error(t, err)
		_, err = RatesFromConfig(config.Payout{HybridComponents: []string{"hybrid"}})
		assert.Error(t, err)
	})
}
