// Package feed consumes order book snapshots from an upstream
// websocket and hands them to the decision loop.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/market"
)

// Message 上游推送的快照消息
type Message struct {
	MarketID string `json:"market_id"`
	Bid      string `json:"bid"`
	Ask      string `json:"ask"`
	BidSize  int64  `json:"bid_size"`
	AskSize  int64  `json:"ask_size"`
	TsMillis int64  `json:"ts"`
}

// Snapshot 把消息转成内部快照，中价与价差由买卖价推出
func (m Message) Snapshot() (market.Snapshot, error) {
	bid, err := decimal.NewFromString(m.Bid)
	if err != nil {
		return market.Snapshot{}, err
	}
	ask, err := decimal.NewFromString(m.Ask)
	if err != nil {
		return market.Snapshot{}, err
	}
	snap := market.Snapshot{
		MarketID:  m.MarketID,
		BestBid:   bid,
		BestAsk:   ask,
		Mid:       bid.Add(ask).Div(decimal.NewFromInt(2)),
		Spread:    ask.Sub(bid),
		BidSize:   m.BidSize,
		AskSize:   m.AskSize,
		Timestamp: time.UnixMilli(m.TsMillis),
	}
	return snap, snap.Validate()
}

// Client 带重连的 websocket 行情客户端
type Client struct {
	url     string
	log     *zap.Logger
	handler func(market.Snapshot)
}

func NewClient(url string, log *zap.Logger, handler func(market.Snapshot)) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, log: log, handler: handler}
}

// Run 连接并消费行情，断线后指数退避重连，直到 ctx 结束
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		if err := c.consume(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("feed disconnected", zap.String("url", c.url), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.log.Info("feed connected", zap.String("url", c.url))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("bad feed message", zap.Error(err))
			continue
		}
		snap, err := msg.Snapshot()
		if err != nil {
			c.log.Warn("invalid snapshot", zap.String("market", msg.MarketID), zap.Error(err))
			continue
		}
		c.handler(snap)
	}
}
