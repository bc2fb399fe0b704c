package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request 下单请求，交易所回报前没有 exchange id。
type Request struct {
	ClientID  string
	MarketID  string
	Side      Side
	OrderSide OrderSide
	Price     decimal.Decimal
	Size      int64
}

// NewRequest 创建请求并生成 client id
func NewRequest(marketID string, side Side, orderSide OrderSide, price decimal.Decimal, size int64) Request {
	return Request{
		ClientID:  "mm_" + uuid.NewString()[:12],
		MarketID:  marketID,
		Side:      side,
		OrderSide: orderSide,
		Price:     price,
		Size:      size,
	}
}

// Order is owned exclusively by the execution engine; everyone else sees
// value copies.
type Order struct {
	ID        string // exchange-assigned, empty until acknowledged
	ClientID  string
	MarketID  string
	Side      Side
	OrderSide OrderSide
	Price     decimal.Decimal
	Size      int64
	Filled    int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining 未成交数量
func (o Order) Remaining() int64 {
	return o.Size - o.Filled
}

// WithStatus returns a copy in the new status after validating the transition.
func (o Order) WithStatus(s Status, at time.Time) (Order, error) {
	if err := ValidateTransition(o.Status, s); err != nil {
		return o, err
	}
	o.Status = s
	o.UpdatedAt = at
	return o, nil
}

// WithFill returns a copy with total filled size updated. filled is the new
// cumulative quantity, not an increment.
func (o Order) WithFill(filled int64, at time.Time) (Order, error) {
	next := StatusPartial
	if filled >= o.Size {
		next = StatusFilled
	}
	out, err := o.WithStatus(next, at)
	if err != nil {
		return o, err
	}
	out.Filled = filled
	return out, nil
}

// Fill 不可变成交记录，只追加
type Fill struct {
	ID        string
	OrderID   string
	MarketID  string
	Side      Side
	OrderSide OrderSide
	Price     decimal.Decimal
	Size      int64
	Timestamp time.Time
	Simulated bool
}
