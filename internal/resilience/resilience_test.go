package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures, probes int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: maxFailures, Cooldown: time.Minute, Probes: probes})
	b.now = clock.Now
	return b, clock
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	if b.maxFailures != 5 || b.cooldown != 30*time.Second || b.probes != 3 {
		t.Errorf("defaults = %d %v %d", b.maxFailures, b.cooldown, b.probes)
	}
	if b.State() != StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, 1)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, ok)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	if b.State() != StateClosed {
		t.Fatalf("State() = %v, a success should reset the count", b.State())
	}
	_ = b.Do(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("Do() on open breaker = %v, called=%v", err, called)
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{name: "probe success closes", probe: ok, want: StateClosed},
		{name: "probe failure reopens", probe: fail, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(1, 1)
			ctx := context.Background()
			_ = b.Do(ctx, fail)

			clock.Advance(time.Minute)
			if b.State() != StateHalfOpen {
				t.Fatalf("State() after cooldown = %v, want half-open", b.State())
			}
			_ = b.Do(ctx, tt.probe)
			if b.State() != tt.want {
				t.Errorf("State() = %v, want %v", b.State(), tt.want)
			}
		})
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b, _ := newTestBreaker(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if b.State() != StateClosed {
		t.Errorf("State() = %v, cancellation must not trip the breaker", b.State())
	}
}

func TestBreakerStateChangeHookAndReset(t *testing.T) {
	b, _ := newTestBreaker(1, 1)
	var seen []State
	b.OnStateChange(func(_, to State) { seen = append(seen, to) })

	_ = b.Do(context.Background(), fail)
	b.Reset()
	if len(seen) != 2 || seen[0] != StateOpen || seen[1] != StateClosed {
		t.Errorf("transitions = %v, want [open closed]", seen)
	}
}

func TestRetry(t *testing.T) {
	fast := RetryConfig{Attempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	tests := []struct {
		name      string
		cfg       RetryConfig
		results   []error
		wantCalls int
		wantErr   error
	}{
		{name: "first try", cfg: fast, results: []error{nil}, wantCalls: 1},
		{name: "succeeds on third", cfg: fast, results: []error{errBoom, errBoom, nil}, wantCalls: 3},
		{name: "gives up after attempts", cfg: fast, results: []error{errBoom, errBoom, errBoom, nil}, wantCalls: 3, wantErr: errBoom},
		{name: "open circuit not retried", cfg: fast, results: []error{ErrCircuitOpen, nil}, wantCalls: 1, wantErr: ErrCircuitOpen},
		{
			name: "custom retryable",
			cfg: RetryConfig{Attempts: 5, MinDelay: time.Millisecond, Retryable: func(err error) bool {
				return !errors.Is(err, errBoom)
			}},
			results:   []error{errBoom},
			wantCalls: 1,
			wantErr:   errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.cfg, func(context.Context) error {
				r := tt.results[calls]
				calls++
				return r
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Retry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{Attempts: 10, MinDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errBoom) {
		t.Errorf("Retry() error = %v, want boom joined with canceled", err)
	}
}

func TestRetryDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.Attempts != 3 || cfg.MinDelay != 2*time.Second || cfg.MaxDelay != 10*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestRetryDeadlinePerAttemptIsRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 2, MinDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Retry() = %v after %d calls, want nil after 2", err, calls)
	}
}

func TestGuard(t *testing.T) {
	t.Run("times out each attempt", func(t *testing.T) {
		g := &Guard{Retry: RetryConfig{Attempts: 2, MinDelay: time.Millisecond}, Timeout: 5 * time.Millisecond}
		calls := 0
		err := g.Run(context.Background(), func(ctx context.Context) error {
			calls++
			<-ctx.Done()
			return ctx.Err()
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Run() error = %v, want deadline exceeded", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("open breaker short-circuits", func(t *testing.T) {
		b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: time.Hour})
		g := &Guard{Breaker: b, Retry: RetryConfig{Attempts: 3, MinDelay: time.Millisecond}}
		calls := 0
		err := g.Run(context.Background(), func(context.Context) error {
			calls++
			return errBoom
		})
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("Run() error = %v, want ErrCircuitOpen", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		if b.State() != StateOpen {
			t.Errorf("State() = %v, want open", b.State())
		}
	})

	t.Run("no breaker", func(t *testing.T) {
		g := &Guard{}
		if err := g.Run(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}
