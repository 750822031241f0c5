package phi

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/modelguard"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
)

// Guarded runs a Detector under a modelguard.Guard and records the
// per-type entity counts.
type Guarded struct {
	inner   Detector
	guard   *modelguard.Guard
	metrics *metrics.Metrics
}

// NewGuarded wraps inner.
func NewGuarded(inner Detector, guard *modelguard.Guard, m *metrics.Metrics) *Guarded {
	return &Guarded{inner: inner, guard: guard, metrics: m}
}

func (g *Guarded) Detect(ctx context.Context, text string, labels []Type) ([]Entity, error) {
	var entities []Entity
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		entities, err = g.inner.Detect(ctx, text, labels)
		return err
	})
	if err != nil {
		return nil, err
	}
	if g.metrics != nil {
		for typ, n := range CountByType(entities) {
			g.metrics.EntitiesDetectedTotal.WithLabelValues(string(typ)).Add(float64(n))
		}
	}
	return entities, nil
}
