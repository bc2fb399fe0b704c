// Package execution turns desired quotes into venue orders. It owns the
// order lifecycle, rate limiting and fill application.
package execution

import (
	"context"
	"errors"

	"github.com/bmerold/predictions-market-maker/order"
)

// 执行层错误分类，上层据此决定重试或熔断
var (
	ErrNotSupported = errors.New("execution: operation not supported by adapter")
	ErrRejected     = errors.New("execution: order rejected by venue")
	ErrRateLimited  = errors.New("execution: venue rate limit hit")
	ErrTimeout      = errors.New("execution: venue request timed out")
	ErrDisconnected = errors.New("execution: venue connection lost")
	ErrUnknownOrder = errors.New("execution: unknown order id")
)

// Capabilities 声明适配器支持的可选操作
type Capabilities struct {
	BatchCancel   bool
	ReplaceOrder  bool
	QueryOpenOrds bool
}

// Adapter is the venue boundary. Submit and Cancel are mandatory; the
// optional operations return ErrNotSupported when Capabilities say so.
type Adapter interface {
	Name() string
	Capabilities() Capabilities

	// Submit places an order and returns the venue order id.
	Submit(ctx context.Context, req order.Request) (string, error)
	Cancel(ctx context.Context, orderID string) error

	// BatchCancel cancels all resting orders in one market.
	BatchCancel(ctx context.Context, marketID string) error
	// Replace atomically swaps price/size on a resting order.
	Replace(ctx context.Context, orderID string, req order.Request) (string, error)
	// OpenOrders returns the venue's view of resting orders, used by
	// reconciliation.
	OpenOrders(ctx context.Context, marketID string) ([]order.Order, error)
}

// Retryable reports whether an adapter error is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrDisconnected)
}
