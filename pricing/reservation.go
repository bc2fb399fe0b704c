package pricing

import "github.com/shopspring/decimal"

// AvellanedaStoikov computes the inventory-adjusted reservation price
//
//	r = mid − q / (γ·σ²·T)
//
// Higher gamma (more risk aversion) shrinks the adjustment; σ=0 or T=0
// returns mid unchanged.
type AvellanedaStoikov struct {
	gamma decimal.Decimal
}

func NewAvellanedaStoikov(p Params) *AvellanedaStoikov {
	gamma := p.Decimal("gamma", "0.1")
	if gamma.LessThanOrEqual(decimal.Zero) {
		gamma = decimal.RequireFromString("0.1")
	}
	return &AvellanedaStoikov{gamma: gamma}
}

func (c *AvellanedaStoikov) Price(mid decimal.Decimal, inventory int64, vol decimal.Decimal, timeToSettlement float64) decimal.Decimal {
	if timeToSettlement <= 0 || vol.LessThanOrEqual(decimal.Zero) {
		return mid
	}
	denom := c.gamma.Mul(vol).Mul(vol).Mul(decimal.NewFromFloat(timeToSettlement))
	if denom.IsZero() {
		return mid
	}
	return mid.Sub(decimal.NewFromInt(inventory).Div(denom))
}
