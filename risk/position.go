package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/order"
)

// MaxInventoryRule blocks quotes whose full fill would push projected
// inventory past the cap in either direction. Resting exposure counts.
type MaxInventoryRule struct {
	maxInventory int64
}

func NewMaxInventoryRule(maxInventory int64) *MaxInventoryRule {
	return &MaxInventoryRule{maxInventory: maxInventory}
}

func (r *MaxInventoryRule) Name() string { return "max_inventory" }

func (r *MaxInventoryRule) Evaluate(quotes order.QuoteSet, ctx Context) Decision {
	// Buying YES and selling NO both add inventory; selling YES and buying
	// NO both shed it.
	buyExposure := quotes.Yes.BidSize + quotes.No.AskSize + ctx.PendingBidExposure
	sellExposure := quotes.Yes.AskSize + quotes.No.BidSize + ctx.PendingAskExposure

	if ctx.Inventory+buyExposure > r.maxInventory {
		return Blocked(fmt.Sprintf("projected long %d exceeds cap %d",
			ctx.Inventory+buyExposure, r.maxInventory))
	}
	if ctx.Inventory-sellExposure < -r.maxInventory {
		return Blocked(fmt.Sprintf("projected short %d exceeds cap %d",
			ctx.Inventory-sellExposure, -r.maxInventory))
	}
	return Allowed()
}

// MaxOrderSizeRule caps single-order size by shrinking oversized quotes
// instead of blocking.
type MaxOrderSizeRule struct {
	maxSize int64
}

func NewMaxOrderSizeRule(maxSize int64) *MaxOrderSizeRule {
	return &MaxOrderSizeRule{maxSize: maxSize}
}

func (r *MaxOrderSizeRule) Name() string { return "max_order_size" }

func (r *MaxOrderSizeRule) Evaluate(quotes order.QuoteSet, _ Context) Decision {
	capped := false
	out := quotes
	clamp := func(v int64) int64 {
		if v > r.maxSize {
			capped = true
			return r.maxSize
		}
		return v
	}
	out.Yes.BidSize = clamp(out.Yes.BidSize)
	out.Yes.AskSize = clamp(out.Yes.AskSize)
	out.No.BidSize = clamp(out.No.BidSize)
	out.No.AskSize = clamp(out.No.AskSize)
	if !capped {
		return Allowed()
	}
	return Modified(fmt.Sprintf("order sizes capped to %d", r.maxSize), out)
}

// MaxNotionalRule blocks when the worst-case notional of the proposed set
// exceeds the cap.
type MaxNotionalRule struct {
	maxNotional decimal.Decimal
}

func NewMaxNotionalRule(maxNotional decimal.Decimal) *MaxNotionalRule {
	return &MaxNotionalRule{maxNotional: maxNotional}
}

func (r *MaxNotionalRule) Name() string { return "max_notional" }

func (r *MaxNotionalRule) Evaluate(quotes order.QuoteSet, _ Context) Decision {
	notional := decimal.Zero
	for _, slot := range order.Slots {
		price, size := quotes.At(slot)
		notional = notional.Add(price.Mul(decimal.NewFromInt(size)))
	}
	if notional.GreaterThan(r.maxNotional) {
		return Blocked(fmt.Sprintf("notional %s exceeds cap %s", notional, r.maxNotional))
	}
	return Allowed()
}
