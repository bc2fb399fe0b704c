package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/config"
	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/pricing"
	"github.com/bmerold/predictions-market-maker/reconfig"
	"github.com/bmerold/predictions-market-maker/risk"
	"github.com/bmerold/predictions-market-maker/store"
	"github.com/bmerold/predictions-market-maker/strategy"
)

// Config 当前生效的配置
func (c *Core) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// ReloadConfig applies a full configuration document through the
// pause/drain/apply/validate/resume sequence. Volatility state carries
// over to the rebuilt components; a failed validation restores the old
// markets and rules.
func (c *Core) ReloadConfig(ctx context.Context, next *config.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	return c.coord.Execute(ctx, "reload_config", reconfig.Stages{
		Pause:  c.Pause,
		Drain:  c.Drain,
		Resume: c.Resume,
		Apply: func() (func(), error) {
			c.mu.Lock()
			prevCfg, prevMarkets := c.cfg, c.markets
			c.mu.Unlock()

			markets := make(map[string]*Market, len(next.Markets))
			for _, mc := range next.Markets {
				m, err := buildMarket(mc, next.Strategy)
				if err != nil {
					return nil, err
				}
				if old := prevMarkets[mc.ID]; old != nil {
					transferComponents(old.Strat.Components(), m.Strat.Components())
					if snap, ok := old.snapshot(); ok {
						m.Book.ApplySnapshot(snap)
						m.setSnapshot(snap)
					}
				}
				markets[mc.ID] = m
			}

			rules, err := risk.BuildRules(next.Risk)
			if err != nil {
				return nil, err
			}
			prevRules := c.riskM.Rules()
			c.riskM.ReplaceRules(rules)

			c.mu.Lock()
			c.cfg, c.markets = next, markets
			c.mu.Unlock()

			rollback := func() {
				c.riskM.ReplaceRules(prevRules)
				c.mu.Lock()
				c.cfg, c.markets = prevCfg, prevMarkets
				c.mu.Unlock()
			}
			return rollback, nil
		},
		Validate: func() error {
			c.mu.RLock()
			defer c.mu.RUnlock()
			if len(c.markets) == 0 {
				return fmt.Errorf("no markets after reload")
			}
			tol := decimal.NewFromFloat(c.cfg.ComplementTolerance)
			for id, m := range c.markets {
				snap, ok := m.snapshot()
				if !ok {
					continue
				}
				// 新组件先空跑一轮，报价越界或补价不守恒就回滚
				qs, err := m.Strat.Quotes(strategy.Input{
					MarketID:         id,
					Mid:              snap.Mid,
					Inventory:        c.store.NetInventory(id),
					MaxInventory:     m.Cfg.MaxInventory,
					BaseSize:         m.Cfg.BaseSize,
					TimeToSettlement: time.Until(m.Cfg.Settlement).Hours(),
					Timestamp:        snap.Timestamp,
				})
				if err != nil {
					return fmt.Errorf("dry-run quote for %s: %w", id, err)
				}
				for _, p := range []decimal.Decimal{qs.Yes.BidPrice, qs.Yes.AskPrice, qs.No.BidPrice, qs.No.AskPrice} {
					if !market.ValidPrice(p) {
						return fmt.Errorf("dry-run quote for %s out of bounds: %s", id, p)
					}
				}
				if !qs.ComplementWithin(tol) {
					return fmt.Errorf("dry-run quote for %s breaks complement conservation", id)
				}
			}
			return nil
		},
	})
}

// SwapComponent 热替换一个定价组件，尽量迁移内部状态
func (c *Core) SwapComponent(ctx context.Context, marketID, slot, typeTag string, params pricing.Params) error {
	c.mu.RLock()
	m := c.markets[marketID]
	c.mu.RUnlock()
	if m == nil {
		return fmt.Errorf("unknown market %q", marketID)
	}
	return c.coord.Execute(ctx, "swap_component:"+slot, reconfig.Stages{
		Pause:  c.Pause,
		Drain:  c.Drain,
		Resume: c.Resume,
		Apply: func() (func(), error) {
			old := m.Strat.Components()
			next := old
			var err error
			switch slot {
			case "volatility":
				next.Volatility, err = pricing.BuildVolatility(typeTag, params)
				if err == nil {
					pricing.TransferState(old.Volatility, next.Volatility)
				}
			case "reservation":
				next.Reservation, err = pricing.BuildReservation(typeTag, params)
			case "skew":
				next.Skew, err = pricing.BuildSkew(typeTag, params)
			case "spread":
				next.Spread, err = pricing.BuildSpread(typeTag, params)
			case "sizer":
				next.Sizer, err = pricing.BuildSizer(typeTag, params)
			default:
				err = fmt.Errorf("unknown component slot %q", slot)
			}
			if err != nil {
				return nil, err
			}
			if err := m.Strat.SetComponents(next); err != nil {
				return nil, err
			}
			return func() { _ = m.Strat.SetComponents(old) }, nil
		},
	})
}

// transferComponents 把可导出状态的组件状态搬到新组件上
func transferComponents(from, to strategy.Components) {
	pricing.TransferState(from.Volatility, to.Volatility)
	pricing.TransferState(from.Reservation, to.Reservation)
	pricing.TransferState(from.Skew, to.Skew)
	pricing.TransferState(from.Spread, to.Spread)
	pricing.TransferState(from.Sizer, to.Sizer)
}

// UpdateParameter 保持组件类型不变，仅换参数。走同一条热替换路径，
// 有状态组件的状态照常迁移。
func (c *Core) UpdateParameter(ctx context.Context, marketID, slot string, params pricing.Params) error {
	c.mu.RLock()
	sc := c.cfg.Strategy
	c.mu.RUnlock()
	var tag string
	switch slot {
	case "volatility":
		tag = sc.Volatility.Type
	case "reservation":
		tag = sc.Reservation.Type
	case "skew":
		tag = sc.Skew.Type
	case "spread":
		tag = sc.Spread.Type
	case "sizer":
		tag = sc.Sizer.Type
	default:
		return fmt.Errorf("unknown component slot %q", slot)
	}
	return c.SwapComponent(ctx, marketID, slot, tag, params)
}

// SetRuleEnabled 启停一条风控规则，关键规则需要显式覆盖
func (c *Core) SetRuleEnabled(name string, enabled, override bool) error {
	return c.riskM.SetEnabled(name, enabled, override)
}

// Correct overwrites a market's position with an operator-confirmed
// reconciliation result and lifts the execution halt so quoting can
// restart from the corrected state.
func (c *Core) Correct(marketID string, pos store.Position) error {
	c.mu.RLock()
	m := c.markets[marketID]
	c.mu.RUnlock()
	if m == nil {
		return fmt.Errorf("unknown market %q", marketID)
	}
	pos.MarketID = marketID
	c.store.ApplyCorrection(pos)
	c.exec.Resume(marketID)
	c.bus.Publish(events.KindConfigChanged, marketID, time.Now(), map[string]any{
		"change":        "position_correction",
		"net_inventory": pos.NetInventory(),
	})
	c.log.Info("position corrected",
		zap.String("market", marketID),
		zap.Int64("yes_qty", pos.YesQty), zap.Int64("no_qty", pos.NoQty))
	return nil
}

// ShutdownMode 停机方式
type ShutdownMode string

const (
	// ShutdownPause 停止报价但保留挂单与仓位
	ShutdownPause ShutdownMode = "pause"
	// ShutdownImmediate 立即撤掉全部挂单
	ShutdownImmediate ShutdownMode = "immediate"
	// ShutdownDrain 停止报价，等限速队列清空后撤单
	ShutdownDrain ShutdownMode = "drain"
	// ShutdownUnwind 只报减仓方向，仓位归零后停止
	ShutdownUnwind ShutdownMode = "unwind"
)

// Shutdown 按指定方式停机
func (c *Core) Shutdown(ctx context.Context, mode ShutdownMode) error {
	switch mode {
	case ShutdownPause:
		c.Pause()
	case ShutdownImmediate:
		c.Pause()
		c.cancelAllMarkets(ctx)
	case ShutdownDrain:
		c.Pause()
		if err := c.Drain(ctx); err != nil {
			return err
		}
		for c.limiter != nil && c.limiter.Depth() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
		c.cancelAllMarkets(ctx)
	case ShutdownUnwind:
		c.unwinding.Store(true)
	default:
		return fmt.Errorf("unknown shutdown mode %q", mode)
	}
	c.log.Info("shutdown initiated", zap.String("mode", string(mode)))
	return nil
}

// Handler 返回控制面的 HTTP 路由
func (c *Core) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.Status())
	})
	mux.HandleFunc("GET /config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.Config())
	})
	mux.HandleFunc("POST /pause", func(w http.ResponseWriter, r *http.Request) {
		c.Pause()
		writeJSON(w, map[string]bool{"paused": true})
	})
	mux.HandleFunc("POST /resume", func(w http.ResponseWriter, r *http.Request) {
		c.Resume()
		writeJSON(w, map[string]bool{"paused": false})
	})
	mux.HandleFunc("POST /killswitch/trip", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reason == "" {
			body.Reason = "manual trip"
		}
		c.riskM.TripKillSwitch(body.Reason)
		c.cancelAllMarkets(r.Context())
		writeJSON(w, map[string]bool{"active": true})
	})
	mux.HandleFunc("POST /killswitch/reset", func(w http.ResponseWriter, r *http.Request) {
		c.riskM.KillSwitch().Reset()
		writeJSON(w, map[string]bool{"active": false})
	})
	mux.HandleFunc("POST /rules", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name     string             `json:"name"`
			Enabled  bool               `json:"enabled"`
			Override bool               `json:"override"`
			Params   map[string]float64 `json:"params,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if len(body.Params) > 0 {
			if err := c.riskM.UpdateRule(risk.RuleSpec{Name: body.Name, Params: body.Params}); err != nil {
				httpError(w, http.StatusUnprocessableEntity, err)
				return
			}
		}
		if err := c.SetRuleEnabled(body.Name, body.Enabled, body.Override); err != nil {
			httpError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, map[string]string{"rule": body.Name})
	})
	mux.HandleFunc("POST /component", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MarketID string         `json:"market_id"`
			Slot     string         `json:"slot"`
			Type     string         `json:"type"`
			Params   pricing.Params `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.SwapComponent(r.Context(), body.MarketID, body.Slot, body.Type, body.Params); err != nil {
			httpError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, map[string]string{"slot": body.Slot, "type": body.Type})
	})
	mux.HandleFunc("POST /params", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MarketID string         `json:"market_id"`
			Slot     string         `json:"slot"`
			Params   pricing.Params `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.UpdateParameter(r.Context(), body.MarketID, body.Slot, body.Params); err != nil {
			httpError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, map[string]string{"slot": body.Slot})
	})
	mux.HandleFunc("POST /corrections", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MarketID string          `json:"market_id"`
			YesQty   int64           `json:"yes_qty"`
			NoQty    int64           `json:"no_qty"`
			AvgYes   decimal.Decimal `json:"avg_yes"`
			AvgNo    decimal.Decimal `json:"avg_no"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		pos := store.Position{YesQty: body.YesQty, NoQty: body.NoQty, AvgYes: body.AvgYes, AvgNo: body.AvgNo}
		if err := c.Correct(body.MarketID, pos); err != nil {
			httpError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, map[string]int64{"net_inventory": pos.NetInventory()})
	})
	mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.Shutdown(r.Context(), ShutdownMode(body.Mode)); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, map[string]string{"mode": body.Mode})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
