package execution

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/bmerold/predictions-market-maker/metrics"
)

// Job 限速队列中的一个待发送请求
type Job struct {
	MarketID string
	Run      func(ctx context.Context)

	cancelled bool
}

// Limiter is a token bucket in front of the venue. Enqueue never blocks
// and never drops; excess jobs wait in an unbounded FIFO whose depth is
// observable. Queued jobs can be cancelled before dispatch.
type Limiter struct {
	mu     sync.Mutex
	queue  *list.List
	tokens float64
	rate   float64
	burst  float64
	last   time.Time
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLimiter 每秒 rate 个令牌，桶深 burst
func NewLimiter(rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		queue:  list.New(),
		tokens: float64(burst),
		rate:   rate,
		burst:  float64(burst),
		last:   time.Now(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	return l
}

// Start runs the dispatch loop until ctx is done.
func (l *Limiter) Start(ctx context.Context) {
	go l.loop(ctx)
}

// Enqueue 入队，立即返回
func (l *Limiter) Enqueue(job *Job) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue.PushBack(job)
	depth := l.queue.Len()
	l.mu.Unlock()

	metrics.LimiterQueueDepth.Set(float64(depth))
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Depth 当前排队数量
func (l *Limiter) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// CancelPending removes queued jobs for one market (all markets when
// marketID is empty) and returns how many were dropped. In-flight jobs
// are unaffected.
func (l *Limiter) CancelPending(marketID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for e := l.queue.Front(); e != nil; {
		next := e.Next()
		job := e.Value.(*Job)
		if marketID == "" || job.MarketID == marketID {
			job.cancelled = true
			l.queue.Remove(e)
			n++
		}
		e = next
	}
	metrics.LimiterQueueDepth.Set(float64(l.queue.Len()))
	return n
}

func (l *Limiter) loop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.queue.Init()
			l.mu.Unlock()
			metrics.LimiterQueueDepth.Set(0)
			return
		case <-l.wake:
		case <-ticker.C:
		}
		l.drain(ctx)
	}
}

func (l *Limiter) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		l.refillLocked(time.Now())
		if l.queue.Len() == 0 || l.tokens < 1 {
			l.mu.Unlock()
			return
		}
		e := l.queue.Front()
		l.queue.Remove(e)
		l.tokens--
		depth := l.queue.Len()
		l.mu.Unlock()

		metrics.LimiterQueueDepth.Set(float64(depth))
		job := e.Value.(*Job)
		if !job.cancelled {
			job.Run(ctx)
		}
	}
}

func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}
