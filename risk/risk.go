// Package risk implements the ordered rule chain that approves, modifies or
// blocks proposed quote sets, plus the kill switch.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
	"github.com/bmerold/predictions-market-maker/store"
)

// Action 对报价的处理
type Action string

const (
	Allow  Action = "ALLOW"
	Modify Action = "MODIFY"
	Block  Action = "BLOCK"
)

// Decision 单条规则或整条链的结论
type Decision struct {
	Action Action
	Reason string
	// Quotes carries the replacement set when Action is Modify.
	Quotes *order.QuoteSet
	// TripKillSwitch requests a system-wide halt regardless of Action.
	TripKillSwitch bool
}

func Allowed() Decision { return Decision{Action: Allow} }

func Blocked(reason string) Decision { return Decision{Action: Block, Reason: reason} }

func Modified(reason string, qs order.QuoteSet) Decision {
	return Decision{Action: Modify, Reason: reason, Quotes: &qs}
}

// Context is the read-only projection assembled per cycle from the state
// store and the market snapshot. Rules must never mutate it and must not
// read anything outside it, so each rule can be unit-tested by constructing
// a Context directly.
type Context struct {
	MarketID     string
	Inventory    int64
	MaxInventory int64
	Positions    map[string]store.Position

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	HourlyPnL     decimal.Decimal // realized within the current hour
	DailyPnL      decimal.Decimal // realized within the current day

	Volatility       decimal.Decimal
	TimeToSettlement float64 // hours
	Snapshot         market.Snapshot
	SnapshotAge      time.Duration

	PendingBidExposure int64
	PendingAskExposure int64
}

// HourlyTotal 小时已实现 + 当前未实现
func (c Context) HourlyTotal() decimal.Decimal {
	return c.HourlyPnL.Add(c.UnrealizedPnL)
}

// DailyTotal 当日已实现 + 当前未实现
func (c Context) DailyTotal() decimal.Decimal {
	return c.DailyPnL.Add(c.UnrealizedPnL)
}

// Rule 风控规则
type Rule interface {
	Name() string
	Evaluate(quotes order.QuoteSet, ctx Context) Decision
}
