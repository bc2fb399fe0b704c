package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/order"
)

// HourlyLossRule blocks and trips the kill switch when hourly realized +
// unrealized PnL breaches the configured negative threshold.
type HourlyLossRule struct {
	maxLoss decimal.Decimal // positive number
}

func NewHourlyLossRule(maxLoss decimal.Decimal) *HourlyLossRule {
	return &HourlyLossRule{maxLoss: maxLoss.Abs()}
}

func (r *HourlyLossRule) Name() string { return "hourly_loss_limit" }

func (r *HourlyLossRule) Evaluate(_ order.QuoteSet, ctx Context) Decision {
	pnl := ctx.HourlyTotal()
	if pnl.LessThan(r.maxLoss.Neg()) {
		return Decision{
			Action:         Block,
			Reason:         fmt.Sprintf("hourly loss %s exceeds limit %s", pnl.Neg(), r.maxLoss),
			TripKillSwitch: true,
		}
	}
	return Allowed()
}

// DailyLossRule 日内亏损限制，触发即急停
type DailyLossRule struct {
	maxLoss decimal.Decimal
}

func NewDailyLossRule(maxLoss decimal.Decimal) *DailyLossRule {
	return &DailyLossRule{maxLoss: maxLoss.Abs()}
}

func (r *DailyLossRule) Name() string { return "daily_loss_limit" }

func (r *DailyLossRule) Evaluate(_ order.QuoteSet, ctx Context) Decision {
	pnl := ctx.DailyTotal()
	if pnl.LessThan(r.maxLoss.Neg()) {
		return Decision{
			Action:         Block,
			Reason:         fmt.Sprintf("daily loss %s exceeds limit %s", pnl.Neg(), r.maxLoss),
			TripKillSwitch: true,
		}
	}
	return Allowed()
}
