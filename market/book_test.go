package market

import (
	"testing"
	"time"
)

func testSnapshot(ts time.Time) Snapshot {
	return Snapshot{
		MarketID:  "FED-25BPS",
		Mid:       dec("0.50"),
		BestBid:   dec("0.49"),
		BestAsk:   dec("0.51"),
		Spread:    dec("0.02"),
		BidSize:   500,
		AskSize:   400,
		Timestamp: ts,
	}
}

func TestBookApplySnapshot(t *testing.T) {
	b := NewBook("FED-25BPS")
	now := time.Now()
	b.ApplySnapshot(testSnapshot(now))

	bid, ok := b.BestBid()
	if !ok || !bid.Price.Equal(dec("0.49")) || bid.Size != 500 {
		t.Fatalf("unexpected best bid: %+v ok=%v", bid, ok)
	}
	ask, ok := b.BestAsk()
	if !ok || !ask.Price.Equal(dec("0.51")) || ask.Size != 400 {
		t.Fatalf("unexpected best ask: %+v ok=%v", ask, ok)
	}
	mid, ok := b.Mid()
	if !ok || !mid.Equal(dec("0.50")) {
		t.Fatalf("unexpected mid: %s ok=%v", mid, ok)
	}
}

// NO 侧视图由 YES 档取补得到
func TestBookNoSideViews(t *testing.T) {
	b := NewBook("FED-25BPS")
	b.ApplySnapshot(testSnapshot(time.Now()))

	noBid, ok := b.BestNoBid()
	if !ok || !noBid.Price.Equal(dec("0.49")) || noBid.Size != 400 {
		t.Fatalf("unexpected NO bid: %+v", noBid)
	}
	noAsk, ok := b.BestNoAsk()
	if !ok || !noAsk.Price.Equal(dec("0.51")) || noAsk.Size != 500 {
		t.Fatalf("unexpected NO ask: %+v", noAsk)
	}
}

func TestSnapshotValidate(t *testing.T) {
	now := time.Now()
	good := testSnapshot(now)
	if err := good.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	crossed := good
	crossed.BestBid, crossed.BestAsk = dec("0.52"), dec("0.51")
	if err := crossed.Validate(); err == nil {
		t.Fatalf("crossed book should be rejected")
	}

	noID := good
	noID.MarketID = ""
	if err := noID.Validate(); err == nil {
		t.Fatalf("missing market id should be rejected")
	}
}
