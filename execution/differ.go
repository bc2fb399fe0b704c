package execution

import (
	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
)

// ActionKind 报价差分后的动作
type ActionKind int

const (
	ActionKeep ActionKind = iota
	ActionPlace
	ActionCancel
	ActionReplace
)

func (k ActionKind) String() string {
	switch k {
	case ActionKeep:
		return "keep"
	case ActionPlace:
		return "place"
	case ActionCancel:
		return "cancel"
	case ActionReplace:
		return "replace"
	}
	return "unknown"
}

// Action pairs a quote slot with what to do about it.
type Action struct {
	Kind    ActionKind
	Slot    order.Slot
	Request order.Request
	Order   *order.Order
}

// Differ compares desired quotes against resting orders per slot.
// Changes smaller than the materiality threshold are kept in place to
// save rate-limit budget and queue position.
type Differ struct {
	priceThreshold decimal.Decimal
	sizeThreshold  int64
}

func NewDiffer(priceThreshold decimal.Decimal, sizeThreshold int64) *Differ {
	if priceThreshold.LessThanOrEqual(decimal.Zero) {
		priceThreshold = market.Tick
	}
	if sizeThreshold < 0 {
		sizeThreshold = 0
	}
	return &Differ{priceThreshold: priceThreshold, sizeThreshold: sizeThreshold}
}

// Diff 计算每个槽位的动作。resting 为空槽位传 nil
func (d *Differ) Diff(qs *order.QuoteSet, resting map[order.Slot]*order.Order) []Action {
	actions := make([]Action, 0, len(order.Slots))
	for _, slot := range order.Slots {
		price, size := qs.At(slot)
		want := size > 0 && market.ValidPrice(price)
		have := resting[slot]

		switch {
		case !want && have == nil:
			continue
		case !want:
			actions = append(actions, Action{Kind: ActionCancel, Slot: slot, Order: have})
		case have == nil:
			side, orderSide := slot.Sides()
			req := order.NewRequest(qs.MarketID, side, orderSide, price, size)
			actions = append(actions, Action{Kind: ActionPlace, Slot: slot, Request: req})
		default:
			if d.material(have, price, size) {
				side, orderSide := slot.Sides()
				req := order.NewRequest(qs.MarketID, side, orderSide, price, size)
				actions = append(actions, Action{Kind: ActionReplace, Slot: slot, Request: req, Order: have})
			} else {
				actions = append(actions, Action{Kind: ActionKeep, Slot: slot, Order: have})
			}
		}
	}
	return actions
}

// material 价格偏离达到阈值、或数量偏离超过阈值才动单
func (d *Differ) material(resting *order.Order, price decimal.Decimal, size int64) bool {
	if price.Sub(resting.Price).Abs().GreaterThanOrEqual(d.priceThreshold) {
		return true
	}
	delta := size - resting.Remaining()
	if delta < 0 {
		delta = -delta
	}
	return delta > d.sizeThreshold
}
