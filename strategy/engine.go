// Package strategy composes the pricing components into a quote set once
// per decision cycle.
package strategy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
	"github.com/bmerold/predictions-market-maker/pricing"
)

var ErrInvalidInput = errors.New("invalid strategy input")

// Input 每周期的行情与仓位输入
type Input struct {
	MarketID         string
	Mid              decimal.Decimal
	Inventory        int64
	MaxInventory     int64
	BaseSize         int64
	TimeToSettlement float64 // hours
	Timestamp        time.Time
}

// Components 五个可插拔定价组件
type Components struct {
	Volatility  pricing.VolatilityEstimator
	Reservation pricing.ReservationCalculator
	Skew        pricing.SkewCalculator
	Spread      pricing.SpreadCalculator
	Sizer       pricing.Sizer
}

// Config 引擎参数
type Config struct {
	// DefaultVolatility is used while the estimator is not ready.
	DefaultVolatility decimal.Decimal
}

// Engine is stateless across calls except for the volatility estimator's
// internal state. It depends only on the component interfaces.
type Engine struct {
	comps Components
	cfg   Config
}

func NewEngine(comps Components, cfg Config) (*Engine, error) {
	if comps.Volatility == nil || comps.Reservation == nil || comps.Skew == nil ||
		comps.Spread == nil || comps.Sizer == nil {
		return nil, errors.New("all five pricing components are required")
	}
	if cfg.DefaultVolatility.LessThanOrEqual(decimal.Zero) {
		cfg.DefaultVolatility = decimal.RequireFromString("0.05")
	}
	return &Engine{comps: comps, cfg: cfg}, nil
}

// Components 返回当前组件，用于热替换时导出状态
func (e *Engine) Components() Components { return e.comps }

// SetComponents 整组替换定价组件。调用方负责先暂停报价。
func (e *Engine) SetComponents(c Components) error {
	if c.Volatility == nil || c.Reservation == nil || c.Skew == nil ||
		c.Spread == nil || c.Sizer == nil {
		return errors.New("all five pricing components are required")
	}
	e.comps = c
	return nil
}

// SetDefaultVolatility 更新估计器未就绪时使用的波动率
func (e *Engine) SetDefaultVolatility(v decimal.Decimal) {
	if v.GreaterThan(decimal.Zero) {
		e.cfg.DefaultVolatility = v
	}
}

// Quotes runs one quoting cycle:
//
//	vol update → reservation → half-spread + skew →
//	YES bid/ask = r ∓ δ − skew → NO quotes as complements →
//	sizes with the YES/NO inversion rule → clamp and tick-round.
func (e *Engine) Quotes(in Input) (order.QuoteSet, error) {
	if in.MarketID == "" || in.Mid.LessThanOrEqual(decimal.Zero) {
		return order.QuoteSet{}, ErrInvalidInput
	}

	e.comps.Volatility.Update(in.Mid, in.Timestamp)
	vol := e.cfg.DefaultVolatility
	if e.comps.Volatility.Ready() {
		vol = e.comps.Volatility.Value()
	}

	r := e.comps.Reservation.Price(in.Mid, in.Inventory, vol, in.TimeToSettlement)
	// half-spread and skew depend only on volatility/inventory, not on each other
	half := e.comps.Spread.HalfSpread(vol, in.Inventory, in.MaxInventory, in.TimeToSettlement)
	skew := e.comps.Skew.Skew(in.Inventory, in.MaxInventory, vol)

	// round toward the inside of the spread: bid down, ask up
	yesBid := market.ClampPrice(market.RoundBid(r.Sub(half).Sub(skew)))
	yesAsk := market.ClampPrice(market.RoundAsk(r.Add(half).Sub(skew)))
	if yesBid.GreaterThanOrEqual(yesAsk) {
		// clamping collapsed the spread; back off one tick each way
		yesBid = market.ClampPrice(yesAsk.Sub(market.Tick))
		yesAsk = market.ClampPrice(yesBid.Add(market.Tick))
	}

	bidSize, askSize := e.comps.Sizer.Sizes(in.Inventory, in.MaxInventory, in.BaseSize)

	// NO prices are the complement of the opposite YES quote. Buying NO
	// reduces inventory like selling YES, so NO sizes invert: the NO bid
	// takes the YES ask size and the NO ask takes the YES bid size.
	yes := order.Quote{BidPrice: yesBid, BidSize: bidSize, AskPrice: yesAsk, AskSize: askSize}
	no := order.Quote{
		BidPrice: market.Complement(yesAsk),
		BidSize:  askSize,
		AskPrice: market.Complement(yesBid),
		AskSize:  bidSize,
	}

	return order.QuoteSet{
		MarketID: in.MarketID,
		Yes:      yes,
		No:       no,
		Inputs: order.Inputs{
			Mid:              in.Mid,
			Volatility:       vol,
			Inventory:        in.Inventory,
			TimeToSettlement: in.TimeToSettlement,
		},
		Timestamp: in.Timestamp,
	}, nil
}
