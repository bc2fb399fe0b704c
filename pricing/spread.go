package pricing

import "github.com/shopspring/decimal"

// FixedSpread returns half of a constant base spread, never below the floor.
type FixedSpread struct {
	base  decimal.Decimal
	floor decimal.Decimal
}

func NewFixedSpread(p Params) *FixedSpread {
	return &FixedSpread{
		base:  p.Decimal("base_spread", "0.02"),
		floor: p.Decimal("min_half_spread", "0.01"),
	}
}

func (s *FixedSpread) HalfSpread(_ decimal.Decimal, _, _ int64, _ float64) decimal.Decimal {
	half := s.base.Div(decimal.NewFromInt(2))
	if half.LessThan(s.floor) {
		return s.floor
	}
	return half
}

// VolatilitySpread widens the half-spread with volatility:
//
//	δ = max(floor, base/2 + k·σ)
type VolatilitySpread struct {
	base  decimal.Decimal
	floor decimal.Decimal
	volK  decimal.Decimal
}

func NewVolatilitySpread(p Params) *VolatilitySpread {
	return &VolatilitySpread{
		base:  p.Decimal("base_spread", "0.02"),
		floor: p.Decimal("min_half_spread", "0.01"),
		volK:  p.Decimal("vol_multiplier", "0.5"),
	}
}

func (s *VolatilitySpread) HalfSpread(vol decimal.Decimal, _, _ int64, _ float64) decimal.Decimal {
	half := s.base.Div(decimal.NewFromInt(2)).Add(s.volK.Mul(vol))
	if half.LessThan(s.floor) {
		return s.floor
	}
	return half
}
