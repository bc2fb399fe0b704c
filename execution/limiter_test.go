package execution

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterDispatchesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLimiter(1000, 10)
	l.Start(ctx)

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		l.Enqueue(&Job{MarketID: "FED-25BPS", Run: func(context.Context) { ran.Add(1) }})
	}

	deadline := time.After(2 * time.Second)
	for ran.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 5 jobs ran", ran.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if l.Depth() != 0 {
		t.Fatalf("queue should be empty, depth=%d", l.Depth())
	}
}

// 令牌耗尽后任务排队而不是丢弃或阻塞
func TestLimiterQueuesBeyondBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1 token/s, burst 1: only the first job can run immediately
	l := NewLimiter(1, 1)

	var ran atomic.Int64
	done := make(chan struct{})
	go func() {
		for i := 0; i < 4; i++ {
			l.Enqueue(&Job{MarketID: "FED-25BPS", Run: func(context.Context) { ran.Add(1) }})
		}
		close(done)
	}()

	select {
	case <-done:
		// Enqueue never blocked
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked")
	}

	l.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	if got := ran.Load(); got > 1 {
		t.Fatalf("burst of 1 should run at most 1 job immediately, ran %d", got)
	}
	if l.Depth() < 3 {
		t.Fatalf("remaining jobs should be queued, depth=%d", l.Depth())
	}
}

func TestLimiterCancelPending(t *testing.T) {
	l := NewLimiter(1, 1)

	var ran atomic.Int64
	for i := 0; i < 3; i++ {
		l.Enqueue(&Job{MarketID: "FED-25BPS", Run: func(context.Context) { ran.Add(1) }})
	}
	l.Enqueue(&Job{MarketID: "CPI-ABOVE-3", Run: func(context.Context) { ran.Add(1) }})

	if n := l.CancelPending("FED-25BPS"); n != 3 {
		t.Fatalf("expected 3 cancelled, got %d", n)
	}
	if l.Depth() != 1 {
		t.Fatalf("other market's job should survive, depth=%d", l.Depth())
	}
	if n := l.CancelPending(""); n != 1 {
		t.Fatalf("empty market id should drain everything, got %d", n)
	}
}
