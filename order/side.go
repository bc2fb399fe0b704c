// Package order holds the order, fill and quote domain types plus the
// order lifecycle state machine.
package order

// Side 合约方向：YES 或 NO
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite 返回另一侧
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// OrderSide 买卖方向
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}
