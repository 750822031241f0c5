package generative

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/modelguard"
)

// Guarded runs a Generator under a modelguard.Guard.
type Guarded struct {
	inner Generator
	guard *modelguard.Guard
}

// NewGuarded wraps inner.
func NewGuarded(inner Generator, guard *modelguard.Guard) *Guarded {
	return &Guarded{inner: inner, guard: guard}
}

func (g *Guarded) Generate(ctx context.Context, text string, params Params) (string, error) {
	var out string
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Generate(ctx, text, params)
		return err
	})
	return out, err
}
