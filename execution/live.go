package execution

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/order"
)

// ErrNoLiveAdapter 未链接实盘适配器
var ErrNoLiveAdapter = errors.New("no live venue adapter is linked into this build")

var liveFactory func(log *zap.Logger) (Adapter, error)

// RegisterLiveFactory links a venue adapter into the build. The open
// core ships without venue credentials or endpoints; deployment builds
// call this from an init function.
func RegisterLiveFactory(f func(log *zap.Logger) (Adapter, error)) {
	liveFactory = f
}

// NewLiveAdapter 构建已注册的实盘适配器
func NewLiveAdapter(log *zap.Logger) (Adapter, error) {
	if liveFactory == nil {
		return nil, ErrNoLiveAdapter
	}
	return liveFactory(log)
}

// RetryingAdapter wraps a live venue adapter and retries transient
// failures with exponential backoff. Rejections are never retried.
type RetryingAdapter struct {
	inner    Adapter
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewRetryingAdapter(inner Adapter, attempts int, backoff time.Duration, log *zap.Logger) *RetryingAdapter {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingAdapter{inner: inner, attempts: attempts, backoff: backoff, log: log}
}

func (a *RetryingAdapter) Name() string               { return a.inner.Name() }
func (a *RetryingAdapter) Capabilities() Capabilities { return a.inner.Capabilities() }

func (a *RetryingAdapter) retry(ctx context.Context, op string, fn func() error) error {
	wait := a.backoff
	var err error
	for i := 0; i < a.attempts; i++ {
		if err = fn(); err == nil || !Retryable(err) {
			return err
		}
		a.log.Warn("venue call failed, retrying",
			zap.String("op", op), zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

func (a *RetryingAdapter) Submit(ctx context.Context, req order.Request) (string, error) {
	var id string
	err := a.retry(ctx, "submit", func() error {
		var e error
		id, e = a.inner.Submit(ctx, req)
		return e
	})
	return id, err
}

func (a *RetryingAdapter) Cancel(ctx context.Context, orderID string) error {
	return a.retry(ctx, "cancel", func() error {
		return a.inner.Cancel(ctx, orderID)
	})
}

func (a *RetryingAdapter) BatchCancel(ctx context.Context, marketID string) error {
	if !a.inner.Capabilities().BatchCancel {
		return ErrNotSupported
	}
	return a.retry(ctx, "batch_cancel", func() error {
		return a.inner.BatchCancel(ctx, marketID)
	})
}

func (a *RetryingAdapter) Replace(ctx context.Context, orderID string, req order.Request) (string, error) {
	if !a.inner.Capabilities().ReplaceOrder {
		return "", ErrNotSupported
	}
	var id string
	err := a.retry(ctx, "replace", func() error {
		var e error
		id, e = a.inner.Replace(ctx, orderID, req)
		return e
	})
	return id, err
}

func (a *RetryingAdapter) OpenOrders(ctx context.Context, marketID string) ([]order.Order, error) {
	if !a.inner.Capabilities().QueryOpenOrds {
		return nil, ErrNotSupported
	}
	var out []order.Order
	err := a.retry(ctx, "open_orders", func() error {
		var e error
		out, e = a.inner.OpenOrders(ctx, marketID)
		return e
	})
	return out, err
}
