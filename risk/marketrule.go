package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
)

// StaleDataRule widens quotes while data is moderately stale and blocks
// outright past the hard ceiling.
type StaleDataRule struct {
	softAge    time.Duration
	hardAge    time.Duration
	widenTicks int64
}

func NewStaleDataRule(softAge, hardAge time.Duration, widenTicks int64) *StaleDataRule {
	if widenTicks < 1 {
		widenTicks = 1
	}
	return &StaleDataRule{softAge: softAge, hardAge: hardAge, widenTicks: widenTicks}
}

func (r *StaleDataRule) Name() string { return "stale_data" }

func (r *StaleDataRule) Evaluate(quotes order.QuoteSet, ctx Context) Decision {
	if r.hardAge > 0 && ctx.SnapshotAge > r.hardAge {
		return Blocked(fmt.Sprintf("market data stale (%s old, ceiling %s)",
			ctx.SnapshotAge.Round(time.Millisecond), r.hardAge))
	}
	if r.softAge <= 0 || ctx.SnapshotAge <= r.softAge {
		return Allowed()
	}

	widen := market.Tick.Mul(decimal.NewFromInt(r.widenTicks))
	out := quotes
	out.Yes.BidPrice = market.ClampPrice(out.Yes.BidPrice.Sub(widen))
	out.Yes.AskPrice = market.ClampPrice(out.Yes.AskPrice.Add(widen))
	out.No.BidPrice = market.Complement(out.Yes.AskPrice)
	out.No.AskPrice = market.Complement(out.Yes.BidPrice)
	return Modified(fmt.Sprintf("widened %d ticks on stale data (%s old)",
		r.widenTicks, ctx.SnapshotAge.Round(time.Millisecond)), out)
}

// VolatilityGuardRule shrinks sizes when volatility spikes over a threshold.
type VolatilityGuardRule struct {
	threshold decimal.Decimal
	shrink    decimal.Decimal // multiplier in (0,1)
}

func NewVolatilityGuardRule(threshold, shrink decimal.Decimal) *VolatilityGuardRule {
	if shrink.LessThanOrEqual(decimal.Zero) || shrink.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		shrink = decimal.RequireFromString("0.5")
	}
	return &VolatilityGuardRule{threshold: threshold, shrink: shrink}
}

func (r *VolatilityGuardRule) Name() string { return "volatility_guard" }

func (r *VolatilityGuardRule) Evaluate(quotes order.QuoteSet, ctx Context) Decision {
	if ctx.Volatility.LessThanOrEqual(r.threshold) {
		return Allowed()
	}
	out := quotes
	scale := func(v int64) int64 {
		return r.shrink.Mul(decimal.NewFromInt(v)).IntPart()
	}
	out.Yes.BidSize = scale(out.Yes.BidSize)
	out.Yes.AskSize = scale(out.Yes.AskSize)
	out.No.BidSize = scale(out.No.BidSize)
	out.No.AskSize = scale(out.No.AskSize)
	return Modified(fmt.Sprintf("sizes shrunk, volatility %s over threshold %s",
		ctx.Volatility, r.threshold), out)
}

// AbnormalSpreadRule widens our quotes when the observed market spread blows
// out beyond the threshold; quoting tight into a dislocated book is how
// inventory gets run over.
type AbnormalSpreadRule struct {
	maxSpread  decimal.Decimal
	widenTicks int64
}

func NewAbnormalSpreadRule(maxSpread decimal.Decimal, widenTicks int64) *AbnormalSpreadRule {
	if widenTicks < 1 {
		widenTicks = 1
	}
	return &AbnormalSpreadRule{maxSpread: maxSpread, widenTicks: widenTicks}
}

func (r *AbnormalSpreadRule) Name() string { return "abnormal_spread" }

func (r *AbnormalSpreadRule) Evaluate(quotes order.QuoteSet, ctx Context) Decision {
	if ctx.Snapshot.Spread.LessThanOrEqual(r.maxSpread) {
		return Allowed()
	}
	widen := market.Tick.Mul(decimal.NewFromInt(r.widenTicks))
	out := quotes
	out.Yes.BidPrice = market.ClampPrice(out.Yes.BidPrice.Sub(widen))
	out.Yes.AskPrice = market.ClampPrice(out.Yes.AskPrice.Add(widen))
	out.No.BidPrice = market.Complement(out.Yes.AskPrice)
	out.No.AskPrice = market.Complement(out.Yes.BidPrice)
	return Modified(fmt.Sprintf("widened %d ticks, market spread %s over threshold %s",
		r.widenTicks, ctx.Snapshot.Spread, r.maxSpread), out)
}
