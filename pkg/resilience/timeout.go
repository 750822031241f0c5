package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn with a derived context that is cancelled after
// timeout. fn keeps running in its goroutine if it ignores cancellation, but
// the caller is released at the deadline. A non-positive timeout runs fn
// directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}

// Call composes a timeout per attempt inside the breaker: the breaker sees
// one outcome per call and a hung model counts as a failure.
func Call(ctx context.Context, cb *CircuitBreaker, timeout time.Duration, fn func(ctx context.Context) error) error {
	run := func(ctx context.Context) error {
		return WithTimeout(ctx, timeout, cb.Name(), fn)
	}
	return cb.ExecuteContext(ctx, run)
}
