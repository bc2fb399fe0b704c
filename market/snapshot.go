package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot 是归一化后的行情快照，由行情接入层推送。
// BidSize/AskSize 为最优档可用数量，0 表示未知。
type Snapshot struct {
	MarketID  string
	Mid       decimal.Decimal
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	Spread    decimal.Decimal
	BidSize   int64
	AskSize   int64
	Timestamp time.Time
}

// Validate rejects snapshots the decision loop must not act on.
func (s Snapshot) Validate() error {
	if s.MarketID == "" || s.Timestamp.IsZero() {
		return ErrMalformedSnapshot
	}
	if s.Mid.LessThanOrEqual(decimal.Zero) || s.Mid.GreaterThanOrEqual(One) {
		return ErrMalformedSnapshot
	}
	if s.BestBid.GreaterThan(s.BestAsk) && !s.BestAsk.IsZero() {
		return ErrMalformedSnapshot
	}
	return nil
}

// Age 返回快照距 now 的时间
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
