package steps

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Retry defaults.
const (
	DefaultMaxAttempts   = 3
	DefaultInitialDelay  = 1 * time.Second
	DefaultMaxDelay      = 60 * time.Second
	DefaultBackoffFactor = 2.0
)

// RetryConfig tunes Retry. The zero value selects the defaults.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Jitter randomizes each delay into the 75%..125% band to keep
	// concurrent retries from synchronizing.
	Jitter bool

	// ShouldRetry decides whether an error is worth another attempt. The
	// default retries everything except context cancellation.
	ShouldRetry func(error) bool

	// Sleep waits between attempts. Tests inject a recorder here; the
	// default honors ctx while waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryState tracks bookkeeping across attempts for diagnostics and
// checkpoint metadata.
type RetryState struct {
	Attempt       int           `json:"attempt"`
	LastError     string        `json:"last_error,omitempty"`
	LastAttemptAt time.Time     `json:"last_attempt_at"`
	NextRetryAt   time.Time     `json:"next_retry_at,omitempty"`
	TotalDelay    time.Duration `json:"total_delay"`
}

// RetryResult reports how a retried operation ended.
type RetryResult[T any] struct {
	Success bool
	Value   T
	Err     error
	State   RetryState
}

// Retry runs op with exponential backoff until it succeeds, a non-retryable
// error occurs, the attempt budget is exhausted, or ctx ends while waiting.
// The first attempt runs immediately; delays apply between attempts only.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) RetryResult[T] {
	cfg = cfg.withDefaults()

	var st RetryState
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		st.Attempt = attempt
		st.LastAttemptAt = time.Now()

		value, err := op(ctx)
		if err == nil {
			return RetryResult[T]{Success: true, Value: value, State: st}
		}
		st.LastError = err.Error()

		if !cfg.ShouldRetry(err) {
			return RetryResult[T]{
				Err:   fmt.Errorf("Non-retryable error: %s", err.Error()),
				State: st,
			}
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		if cfg.Jitter {
			wait = time.Duration(float64(wait) * (0.75 + rand.Float64()*0.5))
		}
		st.TotalDelay += wait
		st.NextRetryAt = time.Now().Add(wait)

		if err := cfg.Sleep(ctx, wait); err != nil {
			return RetryResult[T]{Err: err, State: st}
		}
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
	}

	return RetryResult[T]{
		Err:   fmt.Errorf("Max retries (%d) exceeded. Last error: %s", cfg.MaxAttempts, st.LastError),
		State: st,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = defaultShouldRetry
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return cfg
}

func defaultShouldRetry(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
