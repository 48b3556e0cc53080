package resilience

import (
	"context"
	"time"
)

// Guard wraps calls to an external collaborator with a per-attempt timeout,
// retries and a circuit breaker. A nil Breaker disables circuit breaking.
type Guard struct {
	Breaker *Breaker
	Retry   RetryConfig
	Timeout time.Duration
}

// Run calls fn under the guard.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func(ctx context.Context) error {
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		return fn(ctx)
	}
	return Retry(ctx, g.Retry, func(ctx context.Context) error {
		if g.Breaker == nil {
			return attempt(ctx)
		}
		return g.Breaker.Do(ctx, attempt)
	})
}
