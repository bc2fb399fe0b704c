package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubRule struct {
	name string
	d    Decision
	hits *int
}

func (s stubRule) Name() string { return s.name }

func (s stubRule) Evaluate(order.QuoteSet, Context) Decision {
	if s.hits != nil {
		*s.hits++
	}
	return s.d
}

func quoteSet() order.QuoteSet {
	return order.QuoteSet{
		MarketID: "FED-25BPS",
		Yes:      order.Quote{BidPrice: dec("0.49"), BidSize: 100, AskPrice: dec("0.51"), AskSize: 100},
		No:       order.Quote{BidPrice: dec("0.49"), BidSize: 100, AskPrice: dec("0.51"), AskSize: 100},
	}
}

func riskCtx() Context {
	return Context{
		MarketID:     "FED-25BPS",
		MaxInventory: 1000,
		Snapshot:     market.Snapshot{MarketID: "FED-25BPS", Timestamp: time.Now()},
	}
}

func enabled(rules ...Rule) []ConfiguredRule {
	out := make([]ConfiguredRule, len(rules))
	for i, r := range rules {
		out[i] = ConfiguredRule{Rule: r, Enabled: true}
	}
	return out
}

func TestEvaluateAllowsCleanChain(t *testing.T) {
	m := NewManager(enabled(stubRule{name: "a", d: Allowed()}, stubRule{name: "b", d: Allowed()}), NewKillSwitch(), nil)
	d := m.Evaluate(quoteSet(), riskCtx())
	if d.Action != Allow {
		t.Fatalf("expected ALLOW, got %s (%s)", d.Action, d.Reason)
	}
}

// BLOCK 短路，后续规则不再执行
func TestEvaluateBlockShortCircuits(t *testing.T) {
	var after int
	m := NewManager(enabled(
		stubRule{name: "blocker", d: Blocked("limit hit")},
		stubRule{name: "later", d: Allowed(), hits: &after},
	), NewKillSwitch(), nil)

	d := m.Evaluate(quoteSet(), riskCtx())
	if d.Action != Block {
		t.Fatalf("expected BLOCK, got %s", d.Action)
	}
	if after != 0 {
		t.Fatalf("rules after a block must not run, ran %d times", after)
	}
}

// MODIFY 的替换结果传给后续规则并层层叠加
func TestEvaluateModifyComposes(t *testing.T) {
	first := quoteSet()
	first.Yes.BidSize = 50
	second := first
	second.Yes.AskSize = 50

	m := NewManager(enabled(
		stubRule{name: "m1", d: Modified("shrink bid", first)},
		stubRule{name: "m2", d: Modified("shrink ask", second)},
	), NewKillSwitch(), nil)

	d := m.Evaluate(quoteSet(), riskCtx())
	if d.Action != Modify || d.Quotes == nil {
		t.Fatalf("expected composed MODIFY, got %s", d.Action)
	}
	if d.Quotes.Yes.BidSize != 50 || d.Quotes.Yes.AskSize != 50 {
		t.Fatalf("modifications should compose: %+v", d.Quotes.Yes)
	}
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	var hits int
	rules := []ConfiguredRule{
		{Rule: stubRule{name: "off", d: Blocked("should not run"), hits: &hits}, Enabled: false},
	}
	m := NewManager(rules, NewKillSwitch(), nil)
	if d := m.Evaluate(quoteSet(), riskCtx()); d.Action != Allow {
		t.Fatalf("disabled rule should not block, got %s", d.Action)
	}
	if hits != 0 {
		t.Fatalf("disabled rule ran")
	}
}

// 小时亏损 −52 对 −50 限额：BLOCK 且触发急停；
// 下一周期在规则执行前直接 BLOCK
func TestHourlyLossTripsKillSwitch(t *testing.T) {
	var later int
	m := NewManager(enabled(
		NewHourlyLossRule(dec("50")),
		stubRule{name: "later", d: Allowed(), hits: &later},
	), NewKillSwitch(), nil)

	ctx := riskCtx()
	ctx.HourlyPnL = dec("-30")
	ctx.UnrealizedPnL = dec("-22") // total −52

	d := m.Evaluate(quoteSet(), ctx)
	if d.Action != Block {
		t.Fatalf("expected BLOCK, got %s (%s)", d.Action, d.Reason)
	}
	if !m.KillSwitch().Active() {
		t.Fatalf("kill switch should be tripped")
	}

	// next cycle with healthy pnl still blocks without touching the chain
	later = 0
	healthy := riskCtx()
	if d := m.Evaluate(quoteSet(), healthy); d.Action != Block {
		t.Fatalf("active kill switch must block, got %s", d.Action)
	}
	if later != 0 {
		t.Fatalf("rules must not run while the kill switch is active")
	}
}

// 急停只能人工复位
func TestKillSwitchManualReset(t *testing.T) {
	k := NewKillSwitch()
	k.Trip("first", time.Now())
	k.Trip("second", time.Now())
	reason, _ := k.Reason()
	if reason != "first" {
		t.Fatalf("original trip reason should be kept, got %q", reason)
	}
	k.Reset()
	if k.Active() {
		t.Fatalf("reset should clear the switch")
	}
}

func TestSetEnabledCriticalRequiresOverride(t *testing.T) {
	rules := []ConfiguredRule{
		{Rule: stubRule{name: "daily_loss_limit", d: Allowed()}, Enabled: true, Critical: true},
	}
	m := NewManager(rules, NewKillSwitch(), nil)

	if err := m.SetEnabled("daily_loss_limit", false, false); err == nil {
		t.Fatalf("disabling a critical rule without override should fail")
	}
	if err := m.SetEnabled("daily_loss_limit", false, true); err != nil {
		t.Fatalf("override should allow disabling: %v", err)
	}
	if err := m.SetEnabled("nope", true, false); err == nil {
		t.Fatalf("unknown rule should error")
	}
}

func TestUpdateRuleKeepsPositionAndFlags(t *testing.T) {
	rules := []ConfiguredRule{
		{Rule: NewMaxOrderSizeRule(100), Enabled: true},
		{Rule: NewMaxInventoryRule(500), Enabled: true, Critical: true},
	}
	m := NewManager(rules, NewKillSwitch(), nil)

	if err := m.UpdateRule(RuleSpec{Name: "max_inventory", Params: map[string]float64{"max_inventory": 50}}); err != nil {
		t.Fatalf("update rule: %v", err)
	}
	got := m.Rules()
	if got[1].Rule.Name() != "max_inventory" || !got[1].Critical || !got[1].Enabled {
		t.Fatalf("rule lost its position or flags: %+v", got[1])
	}

	// 新上限立即生效
	ctx := riskCtx()
	ctx.Inventory = 40
	d := m.Evaluate(quoteSet(), ctx)
	if d.Action != Block {
		t.Fatalf("tightened limit should block, got %s", d.Action)
	}

	if err := m.UpdateRule(RuleSpec{Name: "bogus"}); err == nil {
		t.Fatalf("unknown rule should error")
	}
	if err := m.UpdateRule(RuleSpec{Name: "stale_data"}); err == nil {
		t.Fatalf("rule outside the chain should error")
	}
}
