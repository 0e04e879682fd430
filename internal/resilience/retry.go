// Package resilience provides the retry and circuit breaker primitives that
// wrap capability calls.
//
// Capability backends are remote services; the per-call failure policy is a
// small retry budget (see [Retry]) and, for the ASR hot path, a [Breaker]
// that stops hammering a backend that keeps failing. Both are safe for
// concurrent use.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MaxRetries is the default retry budget for capability calls.
const MaxRetries = 3

// ErrBudgetExhausted wraps the last error after every retry attempt failed.
var ErrBudgetExhausted = errors.New("resilience: retry budget exhausted")

// Backoff computes the wait before retry attempt n (0-based, counting the
// retries, not the initial call).
type Backoff func(attempt int) time.Duration

// LinearBackoff waits base×(attempt+1): base, 2×base, 3×base, …
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt+1)
	}
}

// FixedBackoff waits base between every attempt.
func FixedBackoff(base time.Duration) Backoff {
	return func(int) time.Duration {
		return base
	}
}

// Retry runs fn up to retries+1 times, sleeping per backoff between attempts.
// It returns nil on the first success, ctx.Err() if the context is cancelled
// while waiting, and otherwise the last error wrapped in [ErrBudgetExhausted].
func Retry(ctx context.Context, name string, retries int, backoff Backoff, fn func(ctx context.Context) error) error {
	if retries < 0 {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt - 1)
			slog.Warn("retrying after failure",
				"op", name, "attempt", attempt, "wait", wait, "err", lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%s: %w: %w", name, ErrBudgetExhausted, lastErr)
}
