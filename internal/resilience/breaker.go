package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is tripped and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// BreakerConfig holds tuning knobs for a [Breaker]. Zero values are replaced
// with the defaults noted per field.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// Threshold is the number of consecutive failures that trips the
	// breaker. Default: 5.
	Threshold int

	// Cooldown is how long the breaker rejects calls after tripping before
	// letting a probe call through. Default: 30s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. While tripped, calls are
// rejected with [ErrOpen] until the cooldown elapses; the next call then runs
// as a probe, and its outcome decides whether the breaker closes again.
//
// Breaker is safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// NewBreaker creates a Breaker with the supplied configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
	}
}

// Do runs fn if the breaker allows it and feeds the outcome back into the
// failure accounting.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.threshold {
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		// Cooldown elapsed: let this call through as a probe.
		slog.Info("breaker probing", "name", b.name)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures == b.threshold {
			b.openedAt = time.Now()
			slog.Warn("breaker tripped", "name", b.name, "failures", b.failures)
		} else if b.failures > b.threshold {
			// Failed probe: restart the cooldown.
			b.openedAt = time.Now()
		}
		return err
	}
	if b.failures >= b.threshold {
		slog.Info("breaker closed", "name", b.name)
	}
	b.failures = 0
	return nil
}
