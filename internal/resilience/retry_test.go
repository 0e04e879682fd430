package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Retry(context.Background(), "op", 3, FixedBackoff(time.Millisecond), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Retry(context.Background(), "op", 3, FixedBackoff(time.Millisecond), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_BudgetExhausted(t *testing.T) {
	t.Parallel()
	cause := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), "op", 2, FixedBackoff(time.Millisecond), func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want the final attempt's error in the chain", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, "op", 5, FixedBackoff(time.Hour), func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_NegativeRetriesClamped(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Retry(context.Background(), "op", -1, FixedBackoff(time.Millisecond), func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestLinearBackoff(t *testing.T) {
	t.Parallel()
	b := LinearBackoff(100 * time.Millisecond)
	for i, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond} {
		if got := b(i); got != want {
			t.Errorf("backoff(%d) = %v, want %v", i, got, want)
		}
	}
}
