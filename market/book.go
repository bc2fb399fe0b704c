package market

import (
	"sync"
	"time"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"
)

// Level 订单簿单档
type Level struct {
	Price decimal.Decimal
	Size  int64
}

// BidComparator sorts descending so the best bid iterates first.
func BidComparator(a, b interface{}) int {
	return b.(decimal.Decimal).Cmp(a.(decimal.Decimal))
}

// AskComparator sorts ascending so the best ask iterates first.
func AskComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

// Book keeps sorted YES bid/ask levels for one market. NO-side views are
// derived by price complement; only YES levels are stored.
type Book struct {
	MarketID string

	mu        sync.RWMutex
	bids      *rbt.Tree
	asks      *rbt.Tree
	bidSizes  map[string]int64
	askSizes  map[string]int64
	timestamp time.Time
}

func NewBook(marketID string) *Book {
	return &Book{
		MarketID: marketID,
		bids:     rbt.NewWith(BidComparator),
		asks:     rbt.NewWith(AskComparator),
		bidSizes: make(map[string]int64),
		askSizes: make(map[string]int64),
	}
}

// ApplySnapshot replaces the top of book from a snapshot. Depth beyond the
// best level is not tracked; paper fills only need the touch.
func (b *Book) ApplySnapshot(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids.Clear()
	b.asks.Clear()
	b.bidSizes = make(map[string]int64)
	b.askSizes = make(map[string]int64)
	if s.BestBid.GreaterThan(decimal.Zero) {
		b.bids.Put(s.BestBid, nil)
		b.bidSizes[s.BestBid.String()] = s.BidSize
	}
	if s.BestAsk.GreaterThan(decimal.Zero) {
		b.asks.Put(s.BestAsk, nil)
		b.askSizes[s.BestAsk.String()] = s.AskSize
	}
	b.timestamp = s.Timestamp
}

// BestBid 返回最优买档
func (b *Book) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	node := b.bids.Left()
	if node == nil {
		return Level{}, false
	}
	price := node.Key.(decimal.Decimal)
	return Level{Price: price, Size: b.bidSizes[price.String()]}, true
}

// BestAsk 返回最优卖档
func (b *Book) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	node := b.asks.Left()
	if node == nil {
		return Level{}, false
	}
	price := node.Key.(decimal.Decimal)
	return Level{Price: price, Size: b.askSizes[price.String()]}, true
}

// BestNoBid derives the best NO bid from the best YES ask.
func (b *Book) BestNoBid() (Level, bool) {
	lvl, ok := b.BestAsk()
	if !ok {
		return Level{}, false
	}
	return Level{Price: Complement(lvl.Price), Size: lvl.Size}, true
}

// BestNoAsk derives the best NO ask from the best YES bid.
func (b *Book) BestNoAsk() (Level, bool) {
	lvl, ok := b.BestBid()
	if !ok {
		return Level{}, false
	}
	return Level{Price: Complement(lvl.Price), Size: lvl.Size}, true
}

// Timestamp 最近一次更新时间
func (b *Book) Timestamp() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// Mid returns the midpoint of the touch, false when either side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}
