package execution

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func desiredQuotes() *order.QuoteSet {
	return &order.QuoteSet{
		MarketID: "FED-25BPS",
		Yes:      order.Quote{BidPrice: dec("0.49"), BidSize: 100, AskPrice: dec("0.51"), AskSize: 100},
		No:       order.Quote{BidPrice: dec("0.49"), BidSize: 100, AskPrice: dec("0.51"), AskSize: 100},
	}
}

func resting(slot order.Slot, price string, size int64) map[order.Slot]*order.Order {
	side, os := slot.Sides()
	return map[order.Slot]*order.Order{
		slot: {
			ID: "venue-1", MarketID: "FED-25BPS",
			Side: side, OrderSide: os,
			Price: dec(price), Size: size, Status: order.StatusOpen,
		},
	}
}

func kindsOf(actions []Action) map[order.Slot]ActionKind {
	out := make(map[order.Slot]ActionKind, len(actions))
	for _, a := range actions {
		out[a.Slot] = a.Kind
	}
	return out
}

// 空槽位有目标报价则下单
func TestDiffPlacesMissingSlots(t *testing.T) {
	d := NewDiffer(dec("0.01"), 0)
	actions := d.Diff(desiredQuotes(), nil)
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(actions))
	}
	for _, a := range actions {
		if a.Kind != ActionPlace {
			t.Fatalf("expected place, got %s for %s", a.Kind, a.Slot)
		}
		if a.Request.ClientID == "" {
			t.Fatalf("place without request")
		}
	}
}

// 未达阈值的变动保留原单，省限速额度和排队位
func TestDiffKeepsImmaterialChanges(t *testing.T) {
	d := NewDiffer(dec("0.01"), 5)
	kinds := kindsOf(d.Diff(desiredQuotes(), resting(order.SlotYesBid, "0.49", 103)))
	if kinds[order.SlotYesBid] != ActionKeep {
		t.Fatalf("3-contract delta under threshold should keep, got %s", kinds[order.SlotYesBid])
	}
}

func TestDiffReplacesMaterialPriceMove(t *testing.T) {
	d := NewDiffer(dec("0.01"), 0)
	kinds := kindsOf(d.Diff(desiredQuotes(), resting(order.SlotYesBid, "0.47", 100)))
	if kinds[order.SlotYesBid] != ActionReplace {
		t.Fatalf("2-tick move should replace, got %s", kinds[order.SlotYesBid])
	}
}

func TestDiffCancelsUnwantedSlots(t *testing.T) {
	qs := desiredQuotes()
	qs.Yes.BidSize = 0 // one-sided quoting
	d := NewDiffer(dec("0.01"), 0)
	kinds := kindsOf(d.Diff(qs, resting(order.SlotYesBid, "0.49", 100)))
	if kinds[order.SlotYesBid] != ActionCancel {
		t.Fatalf("zero-size slot with a resting order should cancel, got %s", kinds[order.SlotYesBid])
	}
}

func TestDiffIgnoresEmptyUnwantedSlots(t *testing.T) {
	qs := desiredQuotes()
	qs.Yes.BidSize = 0
	qs.Yes.AskSize = 0
	qs.No.BidSize = 0
	qs.No.AskSize = 0
	d := NewDiffer(dec("0.01"), 0)
	if actions := d.Diff(qs, nil); len(actions) != 0 {
		t.Fatalf("nothing wanted, nothing resting: expected no actions, got %d", len(actions))
	}
}
