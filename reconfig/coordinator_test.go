package reconfig

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteHappyPath(t *testing.T) {
	c := NewCoordinator(time.Second, nil, nil)

	var trace []string
	err := c.Execute(context.Background(), "test", Stages{
		Pause:    func() { trace = append(trace, "pause") },
		Drain:    func(context.Context) error { trace = append(trace, "drain"); return nil },
		Apply:    func() (func(), error) { trace = append(trace, "apply"); return nil, nil },
		Validate: func() error { trace = append(trace, "validate"); return nil },
		Resume:   func() { trace = append(trace, "resume") },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"pause", "drain", "apply", "validate", "resume"}
	if len(trace) != len(want) {
		t.Fatalf("stage trace %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("stage order %v, want %v", trace, want)
		}
	}
}

// 校验失败必须回滚，且无论成败都要恢复报价
func TestExecuteRollsBackOnValidateFailure(t *testing.T) {
	c := NewCoordinator(time.Second, nil, nil)

	rolledBack := false
	resumed := false
	err := c.Execute(context.Background(), "test", Stages{
		Pause:    func() {},
		Apply:    func() (func(), error) { return func() { rolledBack = true }, nil },
		Validate: func() error { return errors.New("bad state") },
		Resume:   func() { resumed = true },
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !rolledBack {
		t.Fatalf("failed validation must roll back")
	}
	if !resumed {
		t.Fatalf("resume must run even after rollback")
	}
}

func TestExecuteApplyFailureSkipsValidate(t *testing.T) {
	c := NewCoordinator(time.Second, nil, nil)

	validated := false
	err := c.Execute(context.Background(), "test", Stages{
		Apply:    func() (func(), error) { return nil, errors.New("cannot build") },
		Validate: func() error { validated = true; return nil },
	})
	if err == nil {
		t.Fatalf("expected apply error")
	}
	if validated {
		t.Fatalf("validate must not run after a failed apply")
	}
}

func TestExecuteDrainTimeout(t *testing.T) {
	c := NewCoordinator(50*time.Millisecond, nil, nil)

	applied := false
	err := c.Execute(context.Background(), "test", Stages{
		Drain: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Apply: func() (func(), error) { applied = true; return nil, nil },
	})
	if err == nil {
		t.Fatalf("expected drain timeout")
	}
	if applied {
		t.Fatalf("apply must not run when drain fails")
	}
}

// 超预算视同失败，变更必须回滚
func TestExecuteBudgetOverrunRollsBack(t *testing.T) {
	c := NewCoordinator(30*time.Millisecond, nil, nil)

	rolledBack := false
	resumed := false
	err := c.Execute(context.Background(), "test", Stages{
		Apply: func() (func(), error) {
			time.Sleep(60 * time.Millisecond)
			return func() { rolledBack = true }, nil
		},
		Validate: func() error { return nil },
		Resume:   func() { resumed = true },
	})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if !rolledBack {
		t.Fatalf("overrun must roll back the applied change")
	}
	if !resumed {
		t.Fatalf("resume must run even after an overrun")
	}
}

// 同一时间只允许一个变更
func TestExecuteSerializesChanges(t *testing.T) {
	c := NewCoordinator(time.Second, nil, nil)

	inApply := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = c.Execute(context.Background(), "slow", Stages{
			Apply: func() (func(), error) {
				close(inApply)
				<-release
				return nil, nil
			},
		})
	}()

	<-inApply
	err := c.Execute(context.Background(), "concurrent", Stages{
		Apply: func() (func(), error) { return nil, nil },
	})
	close(release)
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
}
