package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryConfig tunes [Retry]. Zero fields take the defaults noted.
type RetryConfig struct {
	// Attempts is the total number of calls, including the first. Default 3.
	Attempts int
	// MinDelay is the wait before the first retry. Default 2s.
	MinDelay time.Duration
	// MaxDelay caps the doubled wait. Default 10s.
	MaxDelay time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except ErrCircuitOpen and cancellation. A per-attempt
	// deadline is retried as long as the caller's context is alive.
	Retryable func(err error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 2 * time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = max(10*time.Second, c.MinDelay)
	}
	if c.Retryable == nil {
		c.Retryable = defaultRetryable
	}
	return c
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, ErrCircuitOpen) && !errors.Is(err, context.Canceled)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is done. Waits double from MinDelay up to
// MaxDelay. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	delay := cfg.MinDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= cfg.Attempts || !cfg.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, cfg.MaxDelay)
	}
}
