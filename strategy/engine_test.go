package strategy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmerold/predictions-market-maker/pricing"
	"github.com/bmerold/predictions-market-maker/strategy"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T, vol float64, gamma, skewK float64) *strategy.Engine {
	t.Helper()
	comps := strategy.Components{
		Volatility:  pricing.NewFixedVolatility(pricing.Params{"value": vol}),
		Reservation: pricing.NewAvellanedaStoikov(pricing.Params{"gamma": gamma}),
		Skew:        pricing.NewLinearSkew(pricing.Params{"intensity": skewK}),
		Spread:      pricing.NewFixedSpread(pricing.Params{"base_spread": 0.02, "min_half_spread": 0.01}),
		Sizer:       pricing.NewAsymmetricSizer(nil),
	}
	eng, err := strategy.NewEngine(comps, strategy.Config{DefaultVolatility: dec("0.05")})
	require.NoError(t, err)
	return eng
}

func input(mid string, inv int64) strategy.Input {
	return strategy.Input{
		MarketID:         "FED-25BPS",
		Mid:              dec(mid),
		Inventory:        inv,
		MaxInventory:     1000,
		BaseSize:         100,
		TimeToSettlement: 1.0,
		Timestamp:        time.Now(),
	}
}

// 零库存时报价围绕 mid 对称
func TestQuotesNeutralInventory(t *testing.T) {
	eng := newEngine(t, 0.05, 0.1, 0.01)

	qs, err := eng.Quotes(input("0.50", 0))
	require.NoError(t, err)

	assert.True(t, qs.Yes.BidPrice.Equal(dec("0.49")), "YES bid: %s", qs.Yes.BidPrice)
	assert.True(t, qs.Yes.AskPrice.Equal(dec("0.51")), "YES ask: %s", qs.Yes.AskPrice)
	assert.True(t, qs.No.BidPrice.Equal(dec("0.49")), "NO bid: %s", qs.No.BidPrice)
	assert.True(t, qs.No.AskPrice.Equal(dec("0.51")), "NO ask: %s", qs.No.AskPrice)
	assert.Equal(t, int64(100), qs.Yes.BidSize)
	assert.Equal(t, int64(100), qs.Yes.AskSize)
}

// 正库存通过倾斜把 YES 报价整体压低
func TestQuotesPositiveInventorySkew(t *testing.T) {
	// zero volatility pins the reservation price at mid, isolating the skew
	eng := newEngine(t, 0, 0.1, 0.01)

	qs, err := eng.Quotes(input("0.50", 300))
	require.NoError(t, err)

	// raw bid 0.50-0.01-0.003=0.487 floors to 0.48, raw ask 0.507 ceils to 0.51
	assert.True(t, qs.Yes.BidPrice.Equal(dec("0.48")), "YES bid: %s", qs.Yes.BidPrice)
	assert.True(t, qs.Yes.AskPrice.Equal(dec("0.51")), "YES ask: %s", qs.Yes.AskPrice)
	// asymmetric sizing shrinks the bid and grows the ask
	assert.Equal(t, int64(70), qs.Yes.BidSize)
	assert.Equal(t, int64(130), qs.Yes.AskSize)
}

// NO 侧为对面 YES 报价的补价，数量交叉继承
func TestQuotesComplementInvariant(t *testing.T) {
	eng := newEngine(t, 0, 0.1, 0.01)

	for _, inv := range []int64{-800, -300, 0, 300, 800} {
		qs, err := eng.Quotes(input("0.42", inv))
		require.NoError(t, err)

		assert.True(t, qs.ComplementWithin(decimal.Zero),
			"inv=%d: YES %s/%s NO %s/%s", inv,
			qs.Yes.BidPrice, qs.Yes.AskPrice, qs.No.BidPrice, qs.No.AskPrice)
		assert.Equal(t, qs.Yes.AskSize, qs.No.BidSize, "NO bid inherits YES ask size")
		assert.Equal(t, qs.Yes.BidSize, qs.No.AskSize, "NO ask inherits YES bid size")
	}
}

func TestQuotesNeverCross(t *testing.T) {
	eng := newEngine(t, 0.05, 0.1, 0.02)

	for _, mid := range []string{"0.02", "0.10", "0.50", "0.90", "0.98"} {
		for _, inv := range []int64{-1000, 0, 1000} {
			qs, err := eng.Quotes(input(mid, inv))
			require.NoError(t, err)
			assert.True(t, qs.Yes.BidPrice.LessThan(qs.Yes.AskPrice),
				"mid=%s inv=%d: bid %s >= ask %s", mid, inv, qs.Yes.BidPrice, qs.Yes.AskPrice)
			assert.True(t, qs.No.BidPrice.LessThan(qs.No.AskPrice),
				"mid=%s inv=%d: NO crossed", mid, inv)
		}
	}
}

// 估计器未就绪时使用配置的默认波动率
func TestQuotesDefaultVolatilityFallback(t *testing.T) {
	comps := strategy.Components{
		Volatility:  pricing.NewEWMAVolatility(pricing.Params{"min_samples": 100}),
		Reservation: pricing.NewAvellanedaStoikov(pricing.Params{"gamma": 0.1}),
		Skew:        pricing.NewNoSkew(nil),
		Spread:      pricing.NewFixedSpread(pricing.Params{"base_spread": 0.02, "min_half_spread": 0.01}),
		Sizer:       pricing.NewSymmetricSizer(nil),
	}
	eng, err := strategy.NewEngine(comps, strategy.Config{DefaultVolatility: dec("0.08")})
	require.NoError(t, err)

	qs, err := eng.Quotes(input("0.50", 0))
	require.NoError(t, err)
	assert.True(t, qs.Inputs.Volatility.Equal(dec("0.08")),
		"tagged volatility should be the default, got %s", qs.Inputs.Volatility)
}

func TestQuotesRejectsBadInput(t *testing.T) {
	eng := newEngine(t, 0.05, 0.1, 0.01)

	_, err := eng.Quotes(strategy.Input{MarketID: "", Mid: dec("0.50")})
	assert.ErrorIs(t, err, strategy.ErrInvalidInput)

	_, err = eng.Quotes(input("0", 0))
	assert.Error(t, err)
}
