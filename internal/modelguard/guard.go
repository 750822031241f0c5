// Package modelguard wraps calls to the external models with a timeout, a
// circuit breaker, optional retries and call metrics. Every failure it
// returns satisfies errors.Is(err, apperrors.ErrModelUnavailable).
package modelguard

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/resilience"
)

// Guard protects one model.
type Guard struct {
	name    string
	timeout time.Duration
	retries int
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
}

// Options configures a Guard.
type Options struct {
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries int
	Breaker config.BreakerConfig
	Metrics *metrics.Metrics
}

// New creates a Guard named after the model it protects.
func New(name string, opts Options) *Guard {
	m := opts.Metrics
	cb := resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
		FailureThreshold: opts.Breaker.FailureThreshold,
		ResetTimeout:     opts.Breaker.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.SetBreakerState(name, int(to))
		},
	})
	m.SetBreakerState(name, int(resilience.StateClosed))
	return &Guard{
		name:    name,
		timeout: opts.Timeout,
		retries: opts.Retries,
		breaker: cb,
		metrics: m,
	}
}

// Name returns the guarded model's name.
func (g *Guard) Name() string {
	return g.name
}

// State returns the breaker state.
func (g *Guard) State() resilience.State {
	return g.breaker.GetState()
}

// Do runs fn under the guard.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempt := func(ctx context.Context) error {
		return resilience.Call(ctx, g.breaker, g.timeout, fn)
	}
	var err error
	if g.retries > 0 {
		err = resilience.Retry(ctx, g.name, resilience.RetryConfig{MaxAttempts: g.retries + 1}, attempt)
	} else {
		err = attempt(ctx)
	}
	g.observe(start, err)
	if err != nil {
		return apperrors.ModelUnavailable(g.name, err)
	}
	return nil
}

func (g *Guard) observe(start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case isOpen(err):
		status = "open"
	default:
		status = "error"
	}
	g.metrics.ModelCallsTotal.WithLabelValues(g.name, status).Inc()
	g.metrics.ModelCallDuration.WithLabelValues(g.name).Observe(time.Since(start).Seconds())
}

func isOpen(err error) bool {
	return err != nil && errors.Is(err, resilience.ErrCircuitOpen)
}
