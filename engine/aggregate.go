package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/events"
)

// MarketStatus 单市场聚合视图。NO 方向的最优档由 YES 档补价推出。
type MarketStatus struct {
	MarketID      string          `json:"market_id"`
	Inventory     int64           `json:"inventory"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Halted        bool            `json:"halted"`
	RestingOrders int             `json:"resting_orders"`
	NoBid         decimal.Decimal `json:"no_bid"`
	NoAsk         decimal.Decimal `json:"no_ask"`
}

// Status 跨市场聚合视图，控制接口与状态快照事件共用
type Status struct {
	Paused      bool            `json:"paused"`
	KillSwitch  bool            `json:"kill_switch"`
	KillReason  string          `json:"kill_reason,omitempty"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	HourlyPnL   decimal.Decimal `json:"hourly_pnl"`
	DailyPnL    decimal.Decimal `json:"daily_pnl"`
	QueueDepth  int             `json:"queue_depth"`
	Markets     []MarketStatus  `json:"markets"`
}

// Status 汇总当前系统状态。未实现盈亏用各市场最近的快照中价估值。
func (c *Core) Status() Status {
	killReason, _ := c.riskM.KillSwitch().Reason()
	st := Status{
		Paused:      c.Paused(),
		KillSwitch:  c.riskM.KillSwitch().Active(),
		KillReason:  killReason,
		RealizedPnL: c.store.RealizedPnL(),
		HourlyPnL:   c.store.HourlyPnL(),
		DailyPnL:    c.store.DailyPnL(),
		QueueDepth:  c.limiterDepth(),
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, m := range c.markets {
		ms := MarketStatus{
			MarketID:      id,
			Inventory:     c.store.NetInventory(id),
			Halted:        c.exec.Halted(id),
			RestingOrders: len(c.exec.Resting(id)),
		}
		if snap, ok := m.snapshot(); ok {
			ms.UnrealizedPnL = c.store.UnrealizedPnL(id, snap.Mid)
		}
		if lvl, ok := m.Book.BestNoBid(); ok {
			ms.NoBid = lvl.Price
		}
		if lvl, ok := m.Book.BestNoAsk(); ok {
			ms.NoAsk = lvl.Price
		}
		st.Markets = append(st.Markets, ms)
	}
	return st
}

func (c *Core) limiterDepth() int {
	if c.limiter == nil {
		return 0
	}
	return c.limiter.Depth()
}

// RunSnapshots 周期性发布状态快照事件，供外部记录器回放
func (c *Core) RunSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			st := c.Status()
			perMarket := make(map[string]any, len(st.Markets))
			for _, m := range st.Markets {
				perMarket[m.MarketID] = map[string]any{
					"inventory":      m.Inventory,
					"unrealized_pnl": m.UnrealizedPnL.String(),
					"halted":         m.Halted,
					"resting_orders": m.RestingOrders,
				}
			}
			c.bus.Publish(events.KindStateSnapshot, "", now, map[string]any{
				"paused":       st.Paused,
				"kill_switch":  st.KillSwitch,
				"realized_pnl": st.RealizedPnL.String(),
				"hourly_pnl":   st.HourlyPnL.String(),
				"daily_pnl":    st.DailyPnL.String(),
				"queue_depth":  st.QueueDepth,
				"markets":      perMarket,
			})
		}
	}
}
