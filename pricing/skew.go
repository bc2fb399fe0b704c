package pricing

import "github.com/shopspring/decimal"

// LinearSkew 线性库存倾斜
//
//	skew = k·(q/Q_max)
//
// Positive inventory produces positive skew, shifting YES quotes down to
// discourage growing the position further.
type LinearSkew struct {
	intensity decimal.Decimal
}

func NewLinearSkew(p Params) *LinearSkew {
	return &LinearSkew{intensity: p.Decimal("intensity", "0.01")}
}

func (s *LinearSkew) Skew(inventory, maxInventory int64, _ decimal.Decimal) decimal.Decimal {
	if maxInventory == 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(inventory).Div(decimal.NewFromInt(maxInventory))
	return s.intensity.Mul(ratio)
}

// NoSkew 不倾斜；q=0 时报价围绕 mid 对称
type NoSkew struct{}

func NewNoSkew(Params) *NoSkew { return &NoSkew{} }

func (NoSkew) Skew(int64, int64, decimal.Decimal) decimal.Decimal { return decimal.Zero }
