package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
)

// Slot identifies one of the four quoting slots per market.
type Slot string

const (
	SlotYesBid Slot = "yes_bid"
	SlotYesAsk Slot = "yes_ask"
	SlotNoBid  Slot = "no_bid"
	SlotNoAsk  Slot = "no_ask"
)

// Slots 固定顺序，保证 diff/事件输出稳定
var Slots = []Slot{SlotYesBid, SlotYesAsk, SlotNoBid, SlotNoAsk}

// Quote 单侧双边报价
type Quote struct {
	BidPrice decimal.Decimal
	BidSize  int64
	AskPrice decimal.Decimal
	AskSize  int64
}

// Spread 返回 ask − bid
func (q Quote) Spread() decimal.Decimal {
	return q.AskPrice.Sub(q.BidPrice)
}

// Inputs tags a quote set with the raw values that produced it so every
// decision is auditable after the fact.
type Inputs struct {
	Mid              decimal.Decimal
	Volatility       decimal.Decimal
	Inventory        int64
	TimeToSettlement float64 // hours
}

// QuoteSet holds the four quotes (YES bid/ask, NO bid/ask) for one market.
type QuoteSet struct {
	MarketID  string
	Yes       Quote
	No        Quote
	Inputs    Inputs
	Timestamp time.Time
}

// At 按槽位取 (价格, 数量)
func (qs QuoteSet) At(slot Slot) (decimal.Decimal, int64) {
	switch slot {
	case SlotYesBid:
		return qs.Yes.BidPrice, qs.Yes.BidSize
	case SlotYesAsk:
		return qs.Yes.AskPrice, qs.Yes.AskSize
	case SlotNoBid:
		return qs.No.BidPrice, qs.No.BidSize
	default:
		return qs.No.AskPrice, qs.No.AskSize
	}
}

// Sides 槽位对应的合约方向与买卖方向
func (s Slot) Sides() (Side, OrderSide) {
	switch s {
	case SlotYesBid:
		return SideYes, Buy
	case SlotYesAsk:
		return SideYes, Sell
	case SlotNoBid:
		return SideNo, Buy
	default:
		return SideNo, Sell
	}
}

// ComplementWithin checks the YES/NO complement invariant: YES_ask + NO_bid
// and YES_bid + NO_ask must each sit within tol of 1.00.
func (qs QuoteSet) ComplementWithin(tol decimal.Decimal) bool {
	a := qs.Yes.AskPrice.Add(qs.No.BidPrice).Sub(market.One).Abs()
	b := qs.Yes.BidPrice.Add(qs.No.AskPrice).Sub(market.One).Abs()
	return a.LessThanOrEqual(tol) && b.LessThanOrEqual(tol)
}
