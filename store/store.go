// Package store is the single source of truth for positions, inventory and
// PnL. It is written only by the execution engine's fill path; strategy and
// risk read it.
package store

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/metrics"
	"github.com/bmerold/predictions-market-maker/order"
)

// Position 单市场持仓：YES/NO 数量与加权平均开仓价。
// 数量带符号，负数表示该腿为空头。
type Position struct {
	MarketID string
	YesQty   int64
	NoQty    int64
	AvgYes   decimal.Decimal
	AvgNo    decimal.Decimal
}

// NetInventory 净仓位 = YES − NO
func (p Position) NetInventory() int64 {
	return p.YesQty - p.NoQty
}

// Store tracks positions and PnL. The fill-apply path is single-writer;
// concurrent readers observe either the pre-fill or post-fill snapshot,
// never a partial update.
type Store struct {
	mu sync.RWMutex

	feeRate   decimal.Decimal
	positions map[string]Position
	fills     []order.Fill

	realized  decimal.Decimal
	hourlyPnL decimal.Decimal
	dailyPnL  decimal.Decimal
	hourStart time.Time
	dayStart  time.Time
}

func New(feeRate decimal.Decimal) *Store {
	return &Store{
		feeRate:   feeRate,
		positions: make(map[string]Position),
	}
}

// ApplyFill updates position, average price, realized PnL and the hourly/
// daily windows as one atomic unit.
func (s *Store) ApplyFill(f order.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollWindowsLocked(f.Timestamp)

	pos, ok := s.positions[f.MarketID]
	if !ok {
		pos = Position{MarketID: f.MarketID}
	}

	var realized decimal.Decimal
	if f.Side == order.SideYes {
		pos, realized = applySide(pos, f, true)
	} else {
		pos, realized = applySide(pos, f, false)
	}
	s.positions[f.MarketID] = pos
	s.fills = append(s.fills, f)

	fee := f.Price.Mul(decimal.NewFromInt(f.Size)).Mul(s.feeRate)
	net := realized.Sub(fee)
	s.realized = s.realized.Add(net)
	s.hourlyPnL = s.hourlyPnL.Add(net)
	s.dailyPnL = s.dailyPnL.Add(net)

	metrics.Inventory.WithLabelValues(f.MarketID).Set(float64(pos.NetInventory()))
	metrics.RealizedPnL.WithLabelValues(f.MarketID).Set(realizedApprox(s.realized))
}

func realizedApprox(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// applySide mutates the YES or NO leg of a position for one fill and returns
// the realized PnL on closing trades. Quantities are signed: a sell from
// flat opens a short leg, a buy against a short covers it. A confirmed
// fill is never discarded.
func applySide(pos Position, f order.Fill, yes bool) (Position, decimal.Decimal) {
	qty, avg := pos.NoQty, pos.AvgNo
	if yes {
		qty, avg = pos.YesQty, pos.AvgYes
	}
	realized := decimal.Zero

	signed := f.Size
	if f.OrderSide == order.Sell {
		signed = -f.Size
	}

	if qty == 0 || (qty > 0) == (signed > 0) {
		// opening or extending: weighted average entry
		total := decimal.NewFromInt(absInt(qty)).Mul(avg).Add(decimal.NewFromInt(f.Size).Mul(f.Price))
		qty += signed
		avg = total.Div(decimal.NewFromInt(absInt(qty)))
	} else {
		// reducing or flipping
		closed := f.Size
		if closed > absInt(qty) {
			closed = absInt(qty)
		}
		realized = f.Price.Sub(avg).Mul(decimal.NewFromInt(closed))
		if qty < 0 {
			// covering a short gains when the price fell
			realized = realized.Neg()
		}
		qty += signed
		switch {
		case qty == 0:
			avg = decimal.Zero
		case (qty > 0) == (signed > 0):
			// flipped through flat; the remainder opens at the fill price
			avg = f.Price
		}
	}

	if yes {
		pos.YesQty, pos.AvgYes = qty, avg
	} else {
		pos.NoQty, pos.AvgNo = qty, avg
	}
	return pos, realized
}

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ApplyCorrection overwrites a position from a reconciliation result. It is
// part of the execution-only write path.
func (s *Store) ApplyCorrection(pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.MarketID] = pos
	metrics.Inventory.WithLabelValues(pos.MarketID).Set(float64(pos.NetInventory()))
}

// Position 返回某市场持仓快照
func (s *Store) Position(marketID string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[marketID]
	return pos, ok
}

// Positions 返回全部持仓的拷贝
func (s *Store) Positions() map[string]Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out
}

// NetInventory 某市场净仓位
func (s *Store) NetInventory(marketID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[marketID].NetInventory()
}

// RealizedPnL 累计已实现盈亏
func (s *Store) RealizedPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realized
}

// HourlyPnL / DailyPnL 当前窗口内已实现盈亏
func (s *Store) HourlyPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hourlyPnL
}

func (s *Store) DailyPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyPnL
}

// UnrealizedPnL marks the position to the current YES mid on every read;
// nothing is cached. The NO leg marks against the complement. Signed
// quantities make short legs fall out of the same formula: a short YES
// leg gains as the mark drops below its entry.
func (s *Store) UnrealizedPnL(marketID string, mark decimal.Decimal) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[marketID]
	if !ok {
		return decimal.Zero
	}
	unrealized := decimal.Zero
	if pos.YesQty != 0 {
		unrealized = unrealized.Add(mark.Sub(pos.AvgYes).Mul(decimal.NewFromInt(pos.YesQty)))
	}
	if pos.NoQty != 0 {
		noMark := market.Complement(mark)
		unrealized = unrealized.Add(noMark.Sub(pos.AvgNo).Mul(decimal.NewFromInt(pos.NoQty)))
	}
	return unrealized
}

// Fills 返回某市场成交记录（追加序）
func (s *Store) Fills(marketID string) []order.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.fills, func(f order.Fill, _ int) bool {
		return f.MarketID == marketID
	})
}

// ResetMarket zeroes position state after settlement or explicit reset.
func (s *Store) ResetMarket(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, marketID)
	metrics.Inventory.WithLabelValues(marketID).Set(0)
}

// rollWindowsLocked resets the hourly/daily PnL counters when a fill lands
// in a new window.
func (s *Store) rollWindowsLocked(ts time.Time) {
	hour := ts.Truncate(time.Hour)
	day := ts.Truncate(24 * time.Hour)
	if s.hourStart.IsZero() {
		s.hourStart, s.dayStart = hour, day
		return
	}
	if hour.After(s.hourStart) {
		s.hourStart = hour
		s.hourlyPnL = decimal.Zero
	}
	if day.After(s.dayStart) {
		s.dayStart = day
		s.dailyPnL = decimal.Zero
	}
}
