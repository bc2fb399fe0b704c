// Package engine drives the per-market decision cycle and exposes the
// runtime control surface.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/config"
	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/execution"
	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/metrics"
	"github.com/bmerold/predictions-market-maker/order"
	"github.com/bmerold/predictions-market-maker/pricing"
	"github.com/bmerold/predictions-market-maker/reconfig"
	"github.com/bmerold/predictions-market-maker/risk"
	"github.com/bmerold/predictions-market-maker/store"
	"github.com/bmerold/predictions-market-maker/strategy"
)

// Market 单个市场的运行时状态。strategy 引擎各市场独立，
// 波动率状态互不串扰。
type Market struct {
	Cfg   config.MarketConfig
	Strat *strategy.Engine
	Book  *market.Book

	mu       sync.Mutex
	lastSnap market.Snapshot
	hasSnap  bool

	// cycleMu serializes decision cycles for this market; snapshot
	// arrival and the refresh ticker run on different goroutines.
	cycleMu sync.Mutex
}

func (m *Market) setSnapshot(s market.Snapshot) {
	m.mu.Lock()
	m.lastSnap = s
	m.hasSnap = true
	m.mu.Unlock()
}

func (m *Market) snapshot() (market.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnap, m.hasSnap
}

// Core wires strategy, risk and execution together. One decision cycle
// per market per tick; cycles for different markets run concurrently,
// cycles for the same market never overlap.
type Core struct {
	log     *zap.Logger
	bus     *events.Bus
	store   *store.Store
	riskM   *risk.Manager
	exec    *execution.Engine
	limiter *execution.Limiter
	coord   *reconfig.Coordinator

	mu      sync.RWMutex
	cfg     *config.Config
	markets map[string]*Market

	// pauseMu makes the paused check and the in-flight registration a
	// single step against Pause, so Pause followed by Drain observes
	// every cycle that got through the check.
	pauseMu   sync.RWMutex
	paused    atomic.Bool
	unwinding atomic.Bool
	inflight  sync.WaitGroup
}

func NewCore(cfg *config.Config, st *store.Store, riskM *risk.Manager, exec *execution.Engine,
	limiter *execution.Limiter, coord *reconfig.Coordinator, bus *events.Bus, log *zap.Logger) (*Core, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Core{
		log:     log,
		bus:     bus,
		store:   st,
		riskM:   riskM,
		exec:    exec,
		limiter: limiter,
		coord:   coord,
		cfg:     cfg,
		markets: make(map[string]*Market),
	}
	for _, mc := range cfg.Markets {
		m, err := buildMarket(mc, cfg.Strategy)
		if err != nil {
			return nil, err
		}
		c.markets[mc.ID] = m
	}
	return c, nil
}

func buildMarket(mc config.MarketConfig, sc config.StrategyConfig) (*Market, error) {
	comps, err := buildComponents(sc)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.NewEngine(comps, strategy.Config{
		DefaultVolatility: decimal.NewFromFloat(sc.DefaultVolatility),
	})
	if err != nil {
		return nil, err
	}
	return &Market{Cfg: mc, Strat: strat, Book: market.NewBook(mc.ID)}, nil
}

func buildComponents(sc config.StrategyConfig) (strategy.Components, error) {
	var (
		comps strategy.Components
		err   error
	)
	if comps.Volatility, err = pricing.BuildVolatility(sc.Volatility.Type, sc.Volatility.Params); err != nil {
		return comps, err
	}
	if comps.Reservation, err = pricing.BuildReservation(sc.Reservation.Type, sc.Reservation.Params); err != nil {
		return comps, err
	}
	if comps.Skew, err = pricing.BuildSkew(sc.Skew.Type, sc.Skew.Params); err != nil {
		return comps, err
	}
	if comps.Spread, err = pricing.BuildSpread(sc.Spread.Type, sc.Spread.Params); err != nil {
		return comps, err
	}
	if comps.Sizer, err = pricing.BuildSizer(sc.Sizer.Type, sc.Sizer.Params); err != nil {
		return comps, err
	}
	return comps, nil
}

// MarketIDs 当前配置的市场列表
func (c *Core) MarketIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.markets))
	for id := range c.markets {
		out = append(out, id)
	}
	return out
}

// OnSnapshot 行情入口。先撮合纸面订单，再跑一个决策周期。
func (c *Core) OnSnapshot(ctx context.Context, snap market.Snapshot) {
	c.mu.RLock()
	m := c.markets[snap.MarketID]
	c.mu.RUnlock()
	if m == nil {
		return
	}
	if err := snap.Validate(); err != nil {
		metrics.CyclesSkipped.WithLabelValues(snap.MarketID, "malformed").Inc()
		c.log.Warn("malformed snapshot", zap.String("market", snap.MarketID), zap.Error(err))
		return
	}
	m.Book.ApplySnapshot(snap)
	m.setSnapshot(snap)
	c.exec.OnSnapshot(snap)
	c.Cycle(ctx, m, snap, time.Now())
}

// RunCycles 刷新定时器。行情静默时也要按周期重算报价，
// 结算临近与波动率衰减都会移动报价。
func (c *Core) RunCycles(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.RLock()
			ms := make([]*Market, 0, len(c.markets))
			for _, m := range c.markets {
				ms = append(ms, m)
			}
			c.mu.RUnlock()
			for _, m := range ms {
				snap, ok := m.snapshot()
				if !ok {
					continue
				}
				c.Cycle(ctx, m, snap, now)
			}
		}
	}
}

// beginCycle registers a cycle with the drain accounting, or rejects it
// when quoting is paused. Check and registration share the pause lock.
func (c *Core) beginCycle(marketID string) bool {
	c.pauseMu.RLock()
	defer c.pauseMu.RUnlock()
	if c.paused.Load() {
		metrics.CyclesSkipped.WithLabelValues(marketID, "paused").Inc()
		return false
	}
	c.inflight.Add(1)
	return true
}

// Cycle 一次决策周期：策略 → 风控 → 执行
func (c *Core) Cycle(ctx context.Context, m *Market, snap market.Snapshot, now time.Time) {
	if !c.beginCycle(m.Cfg.ID) {
		return
	}
	defer c.inflight.Done()
	if c.exec.Halted(m.Cfg.ID) {
		metrics.CyclesSkipped.WithLabelValues(m.Cfg.ID, "halted").Inc()
		return
	}
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	mid := snap.Mid
	if mid.LessThanOrEqual(decimal.Zero) {
		if bookMid, ok := m.Book.Mid(); ok {
			mid = bookMid
		}
	}
	inv := c.store.NetInventory(m.Cfg.ID)
	tts := time.Until(m.Cfg.Settlement).Hours()
	if tts < 0 {
		tts = 0
	}

	qs, err := m.Strat.Quotes(strategy.Input{
		MarketID:         m.Cfg.ID,
		Mid:              mid,
		Inventory:        inv,
		MaxInventory:     m.Cfg.MaxInventory,
		BaseSize:         m.Cfg.BaseSize,
		TimeToSettlement: tts,
		Timestamp:        snap.Timestamp,
	})
	if err != nil {
		metrics.CyclesSkipped.WithLabelValues(m.Cfg.ID, "strategy").Inc()
		c.log.Warn("quote generation failed", zap.String("market", m.Cfg.ID), zap.Error(err))
		c.bus.Publish(events.KindError, m.Cfg.ID, now, map[string]any{
			"stage": "strategy", "error": err.Error(),
		})
		return
	}
	metrics.QuotesGenerated.WithLabelValues(m.Cfg.ID).Inc()
	metrics.Inventory.WithLabelValues(m.Cfg.ID).Set(float64(inv))

	rctx := c.riskContext(m, qs, snap, now, inv, tts)
	decision := c.riskM.Evaluate(qs, rctx)
	c.bus.Publish(events.KindRiskDecision, m.Cfg.ID, now, map[string]any{
		"action": string(decision.Action), "reason": decision.Reason,
	})

	if decision.Action == risk.Block {
		if c.riskM.KillSwitch().Active() {
			reason, trippedAt := c.riskM.KillSwitch().Reason()
			c.bus.Publish(events.KindKillSwitch, m.Cfg.ID, now, map[string]any{
				"reason": reason, "tripped_at": trippedAt.UTC().Format(time.RFC3339),
			})
			c.cancelAllMarkets(ctx)
		}
		return
	}
	if decision.Action == risk.Modify && decision.Quotes != nil {
		qs = *decision.Quotes
	}

	if c.unwinding.Load() {
		if inv == 0 {
			c.exec.Halt(ctx, m.Cfg.ID)
			c.log.Info("unwind complete", zap.String("market", m.Cfg.ID))
			return
		}
		// only quote the side that reduces inventory
		if inv > 0 {
			qs.Yes.BidSize, qs.No.AskSize = 0, 0
		} else {
			qs.Yes.AskSize, qs.No.BidSize = 0, 0
		}
	}

	c.bus.Publish(events.KindQuoteGenerated, m.Cfg.ID, now, map[string]any{
		"yes_bid": qs.Yes.BidPrice.String(), "yes_ask": qs.Yes.AskPrice.String(),
		"no_bid": qs.No.BidPrice.String(), "no_ask": qs.No.AskPrice.String(),
		"bid_size": qs.Yes.BidSize, "ask_size": qs.Yes.AskSize,
		"mid": qs.Inputs.Mid.String(), "volatility": qs.Inputs.Volatility.String(),
	})
	c.exec.Apply(ctx, &qs)
}

func (c *Core) riskContext(m *Market, qs order.QuoteSet, snap market.Snapshot, now time.Time, inv int64, tts float64) risk.Context {
	pendingBid, pendingAsk := c.exec.PendingExposure(m.Cfg.ID)
	return risk.Context{
		MarketID:           m.Cfg.ID,
		Inventory:          inv,
		MaxInventory:       m.Cfg.MaxInventory,
		Positions:          c.store.Positions(),
		RealizedPnL:        c.store.RealizedPnL(),
		UnrealizedPnL:      c.store.UnrealizedPnL(m.Cfg.ID, qs.Inputs.Mid),
		HourlyPnL:          c.store.HourlyPnL(),
		DailyPnL:           c.store.DailyPnL(),
		Volatility:         qs.Inputs.Volatility,
		TimeToSettlement:   tts,
		Snapshot:           snap,
		SnapshotAge:        snap.Age(now),
		PendingBidExposure: pendingBid,
		PendingAskExposure: pendingAsk,
	}
}

func (c *Core) cancelAllMarkets(ctx context.Context) {
	for _, id := range c.MarketIDs() {
		c.exec.CancelAll(ctx, id)
	}
}

// Pause 暂停所有市场的新决策周期。返回后新周期一律拒绝，
// 已通过准入的周期由 Drain 等待。
func (c *Core) Pause() {
	c.pauseMu.Lock()
	c.paused.Store(true)
	c.pauseMu.Unlock()
}

// Resume 恢复决策
func (c *Core) Resume() { c.paused.Store(false) }

func (c *Core) Paused() bool { return c.paused.Load() }

// Drain 等待进行中的周期结束
func (c *Core) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
