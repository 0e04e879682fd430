package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_PassesThroughWhileClosed(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", Threshold: 3, Cooldown: time.Minute})

	for i := 0; i < 10; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", Threshold: 3, Cooldown: time.Minute})
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want the backend error", i, err)
		}
	}

	// Tripped: calls are rejected without running fn.
	ran := false
	err := b.Do(func() error { ran = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if ran {
		t.Error("fn ran while the breaker was open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", Threshold: 2, Cooldown: time.Minute})
	boom := errors.New("flaky")

	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return boom })

	// Only one consecutive failure on the books: still closed.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", Threshold: 2, Cooldown: 30 * time.Millisecond})
	boom := errors.New("down")

	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return boom })
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen before cooldown", err)
	}

	time.Sleep(50 * time.Millisecond)

	// A successful probe closes the breaker again.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe: unexpected error: %v", err)
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("post-probe: unexpected error: %v", err)
	}
}

func TestBreaker_FailedProbeRestartsCooldown(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", Threshold: 2, Cooldown: 30 * time.Millisecond})
	boom := errors.New("down")

	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return boom })

	time.Sleep(50 * time.Millisecond)
	if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe err = %v, want the backend error", err)
	}

	// Cooldown restarted: immediately open again.
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen right after a failed probe", err)
	}
}
