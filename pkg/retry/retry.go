package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sceneforge/core/internal/domain"
)

// NonRetryableError wraps errors that should not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) *NonRetryableError {
	return &NonRetryableError{Err: err}
}

func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config holds retry configuration.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2.0}
}

// Do executes fn with exponential backoff retry logic.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return errors.Unwrap(err)
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, lastErr)
}

// PolicyFor returns the Task Runtime's retry policy for a capacity class,
// per §4.4's matrix: "exponential backoff with base 2s, cap 60s, max
// retries per-kind... QuotaError is retried at a slower schedule (cap
// 300s)". The base/cap pair is shared across kinds; only MaxAttempts
// varies (domain.MaxRetries).
func PolicyFor(kind domain.CapacityKind) Config {
	max, ok := domain.MaxRetries[kind]
	if !ok {
		max = 3
	}
	return Config{
		MaxAttempts:  max + 1, // MaxRetries counts retries after the first attempt
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// QuotaPolicyFor is the slower schedule §4.4 mandates specifically for
// domain.KindQuota errors, regardless of task kind.
func QuotaPolicyFor(kind domain.CapacityKind) Config {
	cfg := PolicyFor(kind)
	cfg.MaxDelay = 300 * time.Second
	return cfg
}

// ShouldRetry implements §4.4 and §7's per-kind retry decisions:
// ContentPolicyError is never retried; CancelledError, ValidationError,
// NotFoundError, and ConflictError are terminal; everything else retryable
// follows its error kind's policy.
func ShouldRetry(err error) (retry bool, slowSchedule bool) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return true, false // unrecognized errors default to the base policy
	}
	if de.Kind == domain.KindQuota {
		return true, true
	}
	return de.Kind.Retryable(), false
}

// PollingConfig mirrors the Sweeper's exponential poll-interval shape
// (§4.7: "5s up to 60s"), patterned on revenium-middleware-runway-go's
// PollingConfig for external long-running video tasks.
type PollingConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		InitialInterval: 5 * time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      1.5,
	}
}

// NextInterval computes the next poll delay given how many polls have
// already happened for a task.
func (p PollingConfig) NextInterval(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt)))
	if d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}
