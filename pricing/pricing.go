// Package pricing contains the five swappable numeric components that the
// strategy engine composes: volatility estimation, reservation price, skew,
// spread and quote sizing.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolatilityEstimator 跟踪中间价波动
type VolatilityEstimator interface {
	// Update feeds a mid-price observation.
	Update(mid decimal.Decimal, ts time.Time)
	// Value returns the current volatility estimate.
	Value() decimal.Decimal
	// Ready is false until enough observations accumulate; callers must fall
	// back to a configured default volatility while not ready.
	Ready() bool
}

// ReservationCalculator 计算库存调整后的公允价
type ReservationCalculator interface {
	Price(mid decimal.Decimal, inventory int64, vol decimal.Decimal, timeToSettlement float64) decimal.Decimal
}

// SkewCalculator computes the signed shift applied to both quotes.
// Positive skew shifts YES quotes down and NO quotes up.
type SkewCalculator interface {
	Skew(inventory, maxInventory int64, vol decimal.Decimal) decimal.Decimal
}

// SpreadCalculator computes the half-spread; implementations must never
// return below their configured floor.
type SpreadCalculator interface {
	HalfSpread(vol decimal.Decimal, inventory, maxInventory int64, timeToSettlement float64) decimal.Decimal
}

// Sizer 计算双边挂单数量
type Sizer interface {
	Sizes(inventory, maxInventory, baseSize int64) (bid, ask int64)
}

// Stateful is implemented by components whose internal state can be carried
// across a hot swap. A component that cannot interpret the snapshot must
// start from its default state rather than fail.
type Stateful interface {
	ExportState() ([]byte, error)
	ImportState([]byte) error
}

// Params 组件构造参数（来自配置的 params 块）
type Params map[string]float64

func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

func (p Params) Decimal(key string, def string) decimal.Decimal {
	if v, ok := p[key]; ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.RequireFromString(def)
}
