package events

import (
	"testing"
	"time"
)

func TestPublishAssignsMonotonicSeq(t *testing.T) {
	b := NewBus(nil)
	now := time.Now()

	var last uint64
	for i := 0; i < 10; i++ {
		ev := b.Publish(KindQuoteGenerated, "FED-25BPS", now, nil)
		if ev.Seq <= last {
			t.Fatalf("sequence not monotonic: %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestTimestampIsMicrosecondUTC(t *testing.T) {
	b := NewBus(nil)
	at := time.Date(2026, 3, 10, 15, 4, 5, 123456789, time.FixedZone("CST", 8*3600))
	ev := b.Publish(KindFill, "FED-25BPS", at, nil)
	if ev.Timestamp != "2026-03-10T07:04:05.123456Z" {
		t.Fatalf("unexpected timestamp %q", ev.Timestamp)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	b := NewBus(nil)
	ch, cancel := b.Subscribe(8)
	defer cancel()

	b.Publish(KindOrderAck, "FED-25BPS", time.Now(), map[string]any{"order_id": "x"})

	select {
	case ev := <-ch:
		if ev.Kind != KindOrderAck || ev.MarketID != "FED-25BPS" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber got nothing")
	}
}

// 慢消费者丢事件而不是阻塞交易路径
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(nil)
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(KindQuoteGenerated, "FED-25BPS", time.Now(), nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBus(nil)
	ch, cancel := b.Subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	// double cancel is safe
	cancel()
}
