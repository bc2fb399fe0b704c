// Package events emits the ordered event stream consumed by the
// persistence/recording collaborator.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind 事件类型
type Kind string

const (
	KindQuoteGenerated Kind = "quote_generated"
	KindOrderSent      Kind = "order_sent"
	KindOrderAck       Kind = "order_ack"
	KindOrderRejected  Kind = "order_rejected"
	KindOrderCancelled Kind = "order_cancelled"
	KindFill           Kind = "fill"
	KindRiskDecision   Kind = "risk_decision"
	KindKillSwitch     Kind = "kill_switch_triggered"
	KindConfigChanged  Kind = "config_changed"
	KindStateSnapshot  Kind = "state_snapshot"
	KindReconcileError Kind = "reconcile_mismatch"
	KindSessionStart   Kind = "session_start"
	KindSessionEnd     Kind = "session_end"
	KindError          Kind = "error"
)

// tsFormat is microsecond-precision UTC.
const tsFormat = "2006-01-02T15:04:05.000000Z"

// Event 事件流中的一条记录，Seq 单调递增
type Event struct {
	Seq       uint64         `json:"seq"`
	Kind      Kind           `json:"kind"`
	Timestamp string         `json:"ts"`
	MarketID  string         `json:"market_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus fans events out to subscribers. Publish never blocks the trading
// path; a slow subscriber drops events rather than stalling a cycle.
type Bus struct {
	mu   sync.RWMutex
	seq  atomic.Uint64
	subs map[int]chan Event
	next int
	log  *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{subs: make(map[int]chan Event), log: log}
}

// Publish 发布事件，时间戳取 now 的 UTC 微秒
func (b *Bus) Publish(kind Kind, marketID string, now time.Time, data map[string]any) Event {
	ev := Event{
		Seq:       b.seq.Add(1),
		Kind:      kind,
		Timestamp: now.UTC().Format(tsFormat),
		MarketID:  marketID,
		Data:      data,
	}
	b.log.Debug("event", zap.String("kind", string(kind)), zap.String("market", marketID), zap.Uint64("seq", ev.Seq))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; the trading path does not wait
		}
	}
	return ev
}

// Subscribe registers a buffered subscriber; the returned func cancels it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Encode 事件的 JSON 形式
func (e Event) Encode() []byte {
	raw, _ := json.Marshal(e)
	return raw
}
