package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/order"
)

// PaperAdapter simulates a venue in memory. Order ids are sequential
// and fills are stamped with the snapshot timestamp, so a replayed
// input stream reproduces the same output stream.
type PaperAdapter struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]order.Order
}

func NewPaperAdapter() *PaperAdapter {
	return &PaperAdapter{orders: make(map[string]order.Order)}
}

func (p *PaperAdapter) Name() string { return "paper" }

func (p *PaperAdapter) Capabilities() Capabilities {
	return Capabilities{BatchCancel: true, ReplaceOrder: true, QueryOpenOrds: true}
}

func (p *PaperAdapter) Submit(ctx context.Context, req order.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("paper-%d", p.seq)
	p.orders[id] = order.Order{
		ID:        id,
		ClientID:  req.ClientID,
		MarketID:  req.MarketID,
		Side:      req.Side,
		OrderSide: req.OrderSide,
		Price:     req.Price,
		Size:      req.Size,
		Status:    order.StatusOpen,
	}
	return id, nil
}

func (p *PaperAdapter) Cancel(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		return nil
	}
	o.Status = order.StatusCancelled
	p.orders[orderID] = o
	return nil
}

func (p *PaperAdapter) BatchCancel(ctx context.Context, marketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.orders {
		if o.MarketID == marketID && o.Status.IsActive() {
			o.Status = order.StatusCancelled
			p.orders[id] = o
		}
	}
	return nil
}

func (p *PaperAdapter) Replace(ctx context.Context, orderID string, req order.Request) (string, error) {
	if err := p.Cancel(ctx, orderID); err != nil {
		return "", err
	}
	return p.Submit(ctx, req)
}

func (p *PaperAdapter) OpenOrders(ctx context.Context, marketID string) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]order.Order, 0, len(p.orders))
	for _, o := range p.orders {
		if o.MarketID == marketID && o.Status.IsActive() {
			out = append(out, o)
		}
	}
	return out, nil
}

// MatchSnapshot 用最新快照对虚拟挂单撮合，产生模拟成交。
// A resting sell crosses when the book bid reaches it and fills at the
// crossing price (the bid), and symmetrically for buys against the ask.
func (p *PaperAdapter) MatchSnapshot(snap market.Snapshot) []order.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fills []order.Fill
	for id, o := range p.orders {
		if o.MarketID != snap.MarketID || !o.Status.IsActive() {
			continue
		}
		price, avail, ok := crossPrice(o, snap)
		if !ok {
			continue
		}
		qty := o.Remaining()
		if qty <= 0 {
			continue
		}
		// 对手档数量已知时按档位上限撮合，0 表示数量未知
		if avail > 0 && avail < qty {
			qty = avail
		}
		fills = append(fills, order.Fill{
			OrderID:   id,
			MarketID:  o.MarketID,
			Side:      o.Side,
			OrderSide: o.OrderSide,
			Price:     price,
			Size:      qty,
			Timestamp: snap.Timestamp,
			Simulated: true,
		})
		o.Filled += qty
		if o.Filled >= o.Size {
			o.Status = order.StatusFilled
		} else {
			o.Status = order.StatusPartial
		}
		p.orders[id] = o
	}
	return fills
}

// crossPrice 判断挂单是否与对手盘交叉，返回成交价与对手档数量
func crossPrice(o order.Order, snap market.Snapshot) (decimal.Decimal, int64, bool) {
	bestBid, bestAsk := snap.BestBid, snap.BestAsk
	bidSize, askSize := snap.BidSize, snap.AskSize
	if o.Side == order.SideNo {
		// book 以 YES 报价，NO 价格取补，数量跟着档位走
		bestBid, bestAsk = market.Complement(snap.BestAsk), market.Complement(snap.BestBid)
		bidSize, askSize = askSize, bidSize
	}
	switch o.OrderSide {
	case order.Buy:
		if bestAsk.GreaterThan(decimal.Zero) && bestAsk.LessThanOrEqual(o.Price) {
			return bestAsk, askSize, true
		}
	case order.Sell:
		if bestBid.GreaterThan(decimal.Zero) && bestBid.GreaterThanOrEqual(o.Price) {
			return bestBid, bidSize, true
		}
	}
	return decimal.Decimal{}, 0, false
}
