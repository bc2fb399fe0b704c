package market

import "github.com/shopspring/decimal"

// Binary contract prices live on a one-cent grid inside (0, 1).
var (
	MinPrice = decimal.RequireFromString("0.01")
	MaxPrice = decimal.RequireFromString("0.99")
	Tick     = decimal.RequireFromString("0.01")
	One      = decimal.RequireFromString("1")
)

// ClampPrice 将价格限制在 [0.01, 0.99]
func ClampPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	if p.GreaterThan(MaxPrice) {
		return MaxPrice
	}
	return p
}

// Complement returns 1 − p, the equivalent price on the opposite side.
func Complement(p decimal.Decimal) decimal.Decimal {
	return One.Sub(p)
}

// RoundBid rounds a bid down to the tick grid (toward the inside of the spread).
func RoundBid(p decimal.Decimal) decimal.Decimal {
	return p.Div(Tick).Floor().Mul(Tick)
}

// RoundAsk rounds an ask up to the tick grid (toward the inside of the spread).
func RoundAsk(p decimal.Decimal) decimal.Decimal {
	return p.Div(Tick).Ceil().Mul(Tick)
}

// Cents 返回分值（1-99），用于事件输出
func Cents(p decimal.Decimal) int {
	return int(p.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// ValidPrice reports whether p sits on the tick grid inside the bounds.
func ValidPrice(p decimal.Decimal) bool {
	if p.LessThan(MinPrice) || p.GreaterThan(MaxPrice) {
		return false
	}
	return p.Div(Tick).Equal(p.Div(Tick).Floor())
}
