// Package reconfig applies configuration changes to a running system
// without restarting it.
package reconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/metrics"
)

var (
	ErrBudgetExceeded = errors.New("reconfig: swap exceeded time budget")
	ErrInProgress     = errors.New("reconfig: another change is in progress")
)

// Stages 一次热更新的各个阶段。Apply 返回回滚函数。
type Stages struct {
	// Pause stops new decision cycles. Must be quick.
	Pause func()
	// Drain waits until in-flight cycles have finished.
	Drain func(ctx context.Context) error
	// Apply performs the change and returns how to undo it.
	Apply func() (rollback func(), err error)
	// Validate checks the new state before resuming. Optional.
	Validate func() error
	// Resume restarts decision cycles. Always runs, even after rollback.
	Resume func()
}

// Coordinator serializes live changes. Quoting is paused during a
// change and resumed afterwards whether the change stuck or rolled
// back; a failed validation never leaves the mixed state running.
type Coordinator struct {
	mu     sync.Mutex
	budget time.Duration
	bus    *events.Bus
	log    *zap.Logger
}

func NewCoordinator(budget time.Duration, bus *events.Bus, log *zap.Logger) *Coordinator {
	if budget <= 0 {
		budget = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{budget: budget, bus: bus, log: log}
}

// Execute 按 暂停、排空、应用、校验、恢复 的顺序执行一次变更
func (c *Coordinator) Execute(ctx context.Context, name string, st Stages) error {
	if !c.mu.TryLock() {
		return ErrInProgress
	}
	defer c.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	if st.Pause != nil {
		st.Pause()
	}
	if st.Resume != nil {
		defer st.Resume()
	}

	if st.Drain != nil {
		if err := st.Drain(ctx); err != nil {
			c.outcome(name, "rejected", start, err)
			return fmt.Errorf("drain: %w", err)
		}
	}

	rollback, err := st.Apply()
	if err != nil {
		c.outcome(name, "rejected", start, err)
		return fmt.Errorf("apply: %w", err)
	}

	if st.Validate != nil {
		if err := st.Validate(); err != nil {
			if rollback != nil {
				rollback()
			}
			c.outcome(name, "rolled_back", start, err)
			return fmt.Errorf("validate: %w", err)
		}
	}

	if elapsed := time.Since(start); elapsed > c.budget {
		// an overrun counts as a failed swap, the old state comes back
		if rollback != nil {
			rollback()
		}
		err := fmt.Errorf("%w: %s after %s", ErrBudgetExceeded, name, elapsed)
		c.outcome(name, "rolled_back", start, err)
		return err
	}
	c.outcome(name, "applied", start, nil)
	return nil
}

func (c *Coordinator) outcome(name, result string, start time.Time, err error) {
	metrics.ConfigReloads.WithLabelValues(result).Inc()
	fields := []zap.Field{
		zap.String("change", name),
		zap.String("outcome", result),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		c.log.Warn("config change failed", fields...)
	} else {
		c.log.Info("config change applied", fields...)
	}
	if c.bus != nil {
		data := map[string]any{"change": name, "outcome": result}
		if err != nil {
			data["error"] = err.Error()
		}
		c.bus.Publish(events.KindConfigChanged, "", time.Now(), data)
	}
}
