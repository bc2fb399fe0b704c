package execution

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/metrics"
	"github.com/bmerold/predictions-market-maker/order"
	"github.com/bmerold/predictions-market-maker/store"
)

// Engine owns the resting orders. Quote sets come in, diffs go out
// through the limiter, fills land in the position store. Nothing else
// in the process mutates order state.
type Engine struct {
	adapter Adapter
	differ  *Differ
	limiter *Limiter
	store   *store.Store
	bus     *events.Bus
	log     *zap.Logger

	mu      sync.Mutex
	resting map[string]map[order.Slot]*order.Order
	halted  map[string]bool
}

func NewEngine(adapter Adapter, differ *Differ, limiter *Limiter, st *store.Store, bus *events.Bus, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		adapter: adapter,
		differ:  differ,
		limiter: limiter,
		store:   st,
		bus:     bus,
		log:     log,
		resting: make(map[string]map[order.Slot]*order.Order),
		halted:  make(map[string]bool),
	}
}

// Apply 把目标报价与当前挂单做差分并派发动作
func (e *Engine) Apply(ctx context.Context, qs *order.QuoteSet) {
	e.mu.Lock()
	if e.halted[qs.MarketID] {
		e.mu.Unlock()
		return
	}
	slots := e.resting[qs.MarketID]
	view := make(map[order.Slot]*order.Order, len(slots))
	for s, o := range slots {
		view[s] = o
	}
	e.mu.Unlock()

	for _, act := range e.differ.Diff(qs, view) {
		switch act.Kind {
		case ActionKeep:
		case ActionPlace:
			e.enqueuePlace(qs.MarketID, act.Slot, act.Request)
		case ActionCancel:
			e.enqueueCancel(qs.MarketID, act.Slot, act.Order)
		case ActionReplace:
			e.enqueueCancel(qs.MarketID, act.Slot, act.Order)
			e.enqueuePlace(qs.MarketID, act.Slot, act.Request)
		}
	}
}

func (e *Engine) enqueuePlace(marketID string, slot order.Slot, req order.Request) {
	pending := order.Order{
		ClientID:  req.ClientID,
		MarketID:  req.MarketID,
		Side:      req.Side,
		OrderSide: req.OrderSide,
		Price:     req.Price,
		Size:      req.Size,
		Status:    order.StatusPending,
		CreatedAt: time.Now(),
	}
	e.mu.Lock()
	if e.resting[marketID] == nil {
		e.resting[marketID] = make(map[order.Slot]*order.Order)
	}
	e.resting[marketID][slot] = &pending
	e.mu.Unlock()

	e.limiter.Enqueue(&Job{MarketID: marketID, Run: func(ctx context.Context) {
		id, err := e.adapter.Submit(ctx, req)
		now := time.Now()
		e.mu.Lock()
		o := e.resting[marketID][slot]
		stale := o == nil || o.ClientID != req.ClientID
		e.mu.Unlock()
		if stale {
			// slot was re-quoted while we waited in the queue
			if err == nil {
				e.adapter.Cancel(ctx, id)
			}
			return
		}
		if err != nil {
			e.log.Warn("order submit failed", zap.String("market", marketID), zap.Error(err))
			e.transition(marketID, slot, order.StatusRejected, now)
			e.removeSlot(marketID, slot, req.ClientID)
			metrics.OrdersSent.WithLabelValues(marketID, "rejected").Inc()
			e.bus.Publish(events.KindOrderRejected, marketID, now, map[string]any{
				"client_id": req.ClientID, "error": err.Error(),
			})
			return
		}
		e.mu.Lock()
		o.ID = id
		e.mu.Unlock()
		e.transition(marketID, slot, order.StatusOpen, now)
		metrics.OrdersSent.WithLabelValues(marketID, "ok").Inc()
		e.bus.Publish(events.KindOrderAck, marketID, now, map[string]any{
			"order_id": id, "client_id": req.ClientID,
			"side": string(req.Side), "order_side": string(req.OrderSide),
			"price": req.Price.String(), "size": req.Size,
		})
	}})
	e.bus.Publish(events.KindOrderSent, marketID, time.Now(), map[string]any{
		"client_id": req.ClientID, "slot": string(slot),
		"price": req.Price.String(), "size": req.Size,
	})
}

// enqueueCancel captures the venue id before the slot can be re-quoted;
// an order cancelled as part of a replace must not be orphaned when the
// new order takes over the slot.
func (e *Engine) enqueueCancel(marketID string, slot order.Slot, o *order.Order) {
	e.mu.Lock()
	clientID, venueID := o.ClientID, o.ID
	if next, err := o.WithStatus(order.StatusCancelling, time.Now()); err == nil {
		*o = next
	}
	e.mu.Unlock()

	e.limiter.Enqueue(&Job{MarketID: marketID, Run: func(ctx context.Context) {
		if venueID == "" {
			// never acknowledged; the submit callback cancels stale orders
			return
		}
		now := time.Now()
		if err := e.adapter.Cancel(ctx, venueID); err != nil && err != ErrUnknownOrder {
			e.log.Warn("order cancel failed", zap.String("order_id", venueID), zap.Error(err))
			return
		}
		e.removeSlot(marketID, slot, clientID)
		metrics.OrdersCancelled.WithLabelValues(marketID).Inc()
		e.bus.Publish(events.KindOrderCancelled, marketID, now, map[string]any{"order_id": venueID})
	}})
}

// transition 按状态机推进槽位上的订单
func (e *Engine) transition(marketID string, slot order.Slot, to order.Status, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.resting[marketID][slot]
	if o == nil {
		return
	}
	next, err := o.WithStatus(to, at)
	if err != nil {
		e.log.Warn("invalid order transition",
			zap.String("from", string(o.Status)), zap.String("to", string(to)), zap.Error(err))
		return
	}
	*o = next
}

func (e *Engine) removeSlot(marketID string, slot order.Slot, clientID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o := e.resting[marketID][slot]; o != nil && o.ClientID == clientID {
		delete(e.resting[marketID], slot)
	}
}

// OnSnapshot runs paper-mode matching when the adapter supports it.
func (e *Engine) OnSnapshot(snap market.Snapshot) {
	paper, ok := e.adapter.(*PaperAdapter)
	if !ok {
		return
	}
	for _, f := range paper.MatchSnapshot(snap) {
		e.ApplyFill(f)
	}
}

// ApplyFill 把成交写入仓位并更新订单状态，保持原子
func (e *Engine) ApplyFill(f order.Fill) {
	e.store.ApplyFill(f)
	metrics.Fills.WithLabelValues(f.MarketID, string(f.Side)).Inc()

	e.mu.Lock()
	for slot, o := range e.resting[f.MarketID] {
		if o.ID != f.OrderID {
			continue
		}
		next, err := o.WithFill(o.Filled+f.Size, f.Timestamp)
		if err != nil {
			e.log.Warn("fill on terminal order", zap.String("order_id", f.OrderID), zap.Error(err))
			break
		}
		*o = next
		if next.Status == order.StatusFilled {
			delete(e.resting[f.MarketID], slot)
		}
		break
	}
	e.mu.Unlock()

	e.bus.Publish(events.KindFill, f.MarketID, f.Timestamp, map[string]any{
		"order_id": f.OrderID, "side": string(f.Side), "order_side": string(f.OrderSide),
		"price": f.Price.String(), "size": f.Size, "simulated": f.Simulated,
	})
}

// CancelAll drops queued work for the market and cancels every resting
// order. Used on halt, kill switch and shutdown.
func (e *Engine) CancelAll(ctx context.Context, marketID string) {
	e.limiter.CancelPending(marketID)

	e.mu.Lock()
	slots := make(map[order.Slot]*order.Order, len(e.resting[marketID]))
	for s, o := range e.resting[marketID] {
		slots[s] = o
	}
	e.mu.Unlock()

	if e.adapter.Capabilities().BatchCancel {
		if err := e.adapter.BatchCancel(ctx, marketID); err == nil {
			e.mu.Lock()
			delete(e.resting, marketID)
			e.mu.Unlock()
			metrics.OrdersCancelled.WithLabelValues(marketID).Add(float64(len(slots)))
			return
		}
	}
	for slot, o := range slots {
		e.enqueueCancel(marketID, slot, o)
	}
}

// Halt 停止该市场的执行并撤单
func (e *Engine) Halt(ctx context.Context, marketID string) {
	e.mu.Lock()
	e.halted[marketID] = true
	e.mu.Unlock()
	e.CancelAll(ctx, marketID)
}

// Resume 解除市场暂停
func (e *Engine) Resume(marketID string) {
	e.mu.Lock()
	delete(e.halted, marketID)
	e.mu.Unlock()
}

func (e *Engine) Halted(marketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted[marketID]
}

// Resting 返回市场挂单的值拷贝
func (e *Engine) Resting(marketID string) map[order.Slot]order.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[order.Slot]order.Order, len(e.resting[marketID]))
	for s, o := range e.resting[marketID] {
		out[s] = *o
	}
	return out
}

// PendingExposure 汇总挂单中的买卖敞口，供风控投影使用
func (e *Engine) PendingExposure(marketID string) (bid, ask int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.resting[marketID] {
		if !o.Status.IsActive() && o.Status != order.StatusPending {
			continue
		}
		qty := o.Remaining()
		// YES buys and NO sells add long exposure
		long := (o.Side == order.SideYes) == (o.OrderSide == order.Buy)
		if long {
			bid += qty
		} else {
			ask += qty
		}
	}
	return bid, ask
}
