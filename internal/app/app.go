// Package app assembles the pipeline and its model clients from
// configuration. Every binary builds its pipeline here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/generative"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/modelguard"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/redact"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/strategy"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
)

// Models holds the guarded model clients. Either may be nil when its
// provider is "none".
type Models struct {
	Detector  phi.Detector
	Generator generative.Generator
	// Checks are readiness probes for the remote models.
	Checks map[string]health.Check
}

// BuildModels creates the detector and generator named by cfg, each behind
// its own modelguard.Guard. Generator clients are constructed on first use.
func BuildModels(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Models, error) {
	models := &Models{Checks: make(map[string]health.Check)}

	switch cfg.Detector.Provider {
	case "http":
		d := phi.NewHTTPDetector(cfg.Detector.Endpoint, cfg.Detector.APIKey, cfg.Detector.Threshold, cfg.Detector.Timeout)
		models.Detector = phi.NewGuarded(d, modelguard.New("detector", modelguard.Options{
			Timeout: cfg.Detector.Timeout,
			Retries: cfg.Detector.Retries,
			Breaker: cfg.Detector.Breaker,
			Metrics: m,
		}), m)
		models.Checks["detector"] = health.Ping(d.Ping)
	case "pattern":
		models.Detector = phi.NewGuarded(phi.NewPatternDetector(), modelguard.New("detector", modelguard.Options{Metrics: m}), m)
	case "none":
	default:
		return nil, fmt.Errorf("unknown detector provider %q", cfg.Detector.Provider)
	}

	gen, check, err := buildGenerator(ctx, cfg.Generator)
	if err != nil {
		return nil, err
	}
	if gen != nil {
		models.Generator = generative.NewGuarded(gen, modelguard.New("generator", modelguard.Options{
			Timeout: cfg.Generator.Timeout,
			Breaker: cfg.Generator.Breaker,
			Metrics: m,
		}))
	}
	if check != nil {
		models.Checks["generator"] = check
	}

	slog.Info("models configured",
		"detector", cfg.Detector.Provider,
		"generator", cfg.Generator.Provider,
		"generator_model", cfg.Generator.Model,
	)
	return models, nil
}

// buildGenerator returns a lazily constructed generator. The readiness
// check is optional because the generative summary degrades on failure.
func buildGenerator(ctx context.Context, gc config.GeneratorConfig) (generative.Generator, health.Check, error) {
	switch gc.Provider {
	case "http":
		g := generative.NewHTTPGenerator(gc.Endpoint, gc.Model, gc.APIKey, gc.Timeout)
		return g, health.Optional(g.Ping), nil
	case "gemini":
		return generative.NewLazy(func() (generative.Generator, error) {
			return generative.NewGemini(ctx, gc.APIKey, gc.Model)
		}), nil, nil
	case "ollama":
		return generative.NewLazy(func() (generative.Generator, error) {
			return generative.NewOllama(gc.Endpoint, gc.Model, gc.Timeout)
		}), nil, nil
	case "openai":
		return generative.NewLazy(func() (generative.Generator, error) {
			return generative.NewOpenAI(gc.APIKey, gc.Endpoint, gc.Model), nil
		}), nil, nil
	case "none":
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown generator provider %q", gc.Provider)
}

// Strategies returns the three strategies in their fixed run order.
func Strategies(sc config.SummarizerConfig, gen generative.Generator) ([]strategy.Strategy, error) {
	tw := scoring.DefaultTermWeighting()
	tw.MaxTerms = sc.RelevanceMaxTerms
	classical, err := strategy.NewClassical(sc.MaxSentences, scoring.ClassicalWeights, tw)
	if err != nil {
		return nil, err
	}
	return []strategy.Strategy{
		strategy.NewNaive(sc.MaxSentences),
		classical,
		strategy.NewGenerative(gen, sc.GenerativeMinWords),
	}, nil
}

// BuildPipeline wires models and strategies into a Pipeline.
func BuildPipeline(cfg *config.Config, models *Models, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	mode, err := redact.ParseMode(cfg.Redaction.Mode)
	if err != nil {
		return nil, err
	}
	strategies, err := Strategies(cfg.Summarizer, models.Generator)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Detector:   models.Detector,
		Redactor:   redact.New(mode),
		Strategies: strategies,
		KeyPoints:  cfg.Summarizer.MaxKeyPoints,
		Workers:    cfg.Pipeline.Workers,
		Metrics:    m,
	}), nil
}
