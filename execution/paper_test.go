package execution

import (
	"context"
	"testing"
	"time"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
)

func paperSnapshot(bid, ask string, ts time.Time) market.Snapshot {
	b, a := dec(bid), dec(ask)
	return market.Snapshot{
		MarketID:  "FED-25BPS",
		BestBid:   b,
		BestAsk:   a,
		Mid:       b.Add(a).Div(dec("2")),
		Spread:    a.Sub(b),
		Timestamp: ts,
	}
}

// 虚拟卖单被盘口买价穿越时按穿越价成交，而不是挂单价
func TestPaperFillAtCrossingPrice(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	req := order.NewRequest("FED-25BPS", order.SideYes, order.Sell, dec("0.505"), 100)
	// 0.505 is off-grid for a resting order but legal for the scenario
	if _, err := p.Submit(ctx, req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ts := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fills := p.MatchSnapshot(paperSnapshot("0.51", "0.53", ts))
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	f := fills[0]
	if !f.Price.Equal(dec("0.51")) {
		t.Fatalf("fill should be at the crossing price 0.51, got %s", f.Price)
	}
	if f.Size != 100 || !f.Simulated || !f.Timestamp.Equal(ts) {
		t.Fatalf("unexpected fill: %+v", f)
	}

	// the order is done; the same snapshot must not fill twice
	if again := p.MatchSnapshot(paperSnapshot("0.51", "0.53", ts)); len(again) != 0 {
		t.Fatalf("filled order matched again")
	}
}

func TestPaperBuyFillsAgainstAsk(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	if _, err := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideYes, order.Buy, dec("0.52"), 50)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fills := p.MatchSnapshot(paperSnapshot("0.49", "0.51", time.Now()))
	if len(fills) != 1 || !fills[0].Price.Equal(dec("0.51")) {
		t.Fatalf("buy should fill at the ask 0.51: %+v", fills)
	}
}

// NO 方向用补价撮合：NO 买单的对手卖价是 1 − best_bid
func TestPaperNoSideUsesComplement(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	// NO bid at 0.55; NO best ask = 1 − 0.49 = 0.51, crossing
	if _, err := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideNo, order.Buy, dec("0.55"), 30)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fills := p.MatchSnapshot(paperSnapshot("0.49", "0.53", time.Now()))
	if len(fills) != 1 || !fills[0].Price.Equal(dec("0.51")) {
		t.Fatalf("NO buy should fill at complement 0.51: %+v", fills)
	}
}

func TestPaperNoCrossNoFill(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	if _, err := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideYes, order.Sell, dec("0.55"), 100)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fills := p.MatchSnapshot(paperSnapshot("0.49", "0.51", time.Now())); len(fills) != 0 {
		t.Fatalf("uncrossed order should not fill: %+v", fills)
	}
}

// 订单号为确定性序列，重放同样的输入得到同样的输出
func TestPaperDeterministicIDs(t *testing.T) {
	run := func() []string {
		p := NewPaperAdapter()
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			id, err := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideYes, order.Buy, dec("0.40"), 10))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			ids = append(ids, id)
		}
		return ids
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ids diverge at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestPaperCancelAndOpenOrders(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	id, _ := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideYes, order.Buy, dec("0.40"), 10))
	open, err := p.OpenOrders(ctx, "FED-25BPS")
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open order: %v %d", err, len(open))
	}

	if err := p.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	open, _ = p.OpenOrders(ctx, "FED-25BPS")
	if len(open) != 0 {
		t.Fatalf("cancelled order still open")
	}

	if err := p.Cancel(ctx, "missing"); err != ErrUnknownOrder {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

// 对手档数量已知时按档位上限部分成交，剩余量等下一张快照
func TestPaperPartialFillAgainstLevelSize(t *testing.T) {
	p := NewPaperAdapter()
	ctx := context.Background()

	if _, err := p.Submit(ctx, order.NewRequest("FED-25BPS", order.SideYes, order.Buy, dec("0.52"), 100)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ts := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	snap := paperSnapshot("0.49", "0.51", ts)
	snap.AskSize = 30
	fills := p.MatchSnapshot(snap)
	if len(fills) != 1 || fills[0].Size != 30 {
		t.Fatalf("expected a 30-lot fill, got %+v", fills)
	}

	open, _ := p.OpenOrders(ctx, "FED-25BPS")
	if len(open) != 1 || open[0].Status != order.StatusPartial || open[0].Remaining() != 70 {
		t.Fatalf("expected a partial order with 70 remaining, got %+v", open)
	}

	// 下一张快照补上剩余量
	snap2 := paperSnapshot("0.49", "0.51", ts.Add(time.Second))
	fills = p.MatchSnapshot(snap2)
	if len(fills) != 1 || fills[0].Size != 70 {
		t.Fatalf("expected the 70-lot remainder, got %+v", fills)
	}
}
