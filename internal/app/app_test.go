package app

import (
	"context"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/strategy"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
)

func TestBuildPipelineWithPatternDetector(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Provider = "pattern"
	cfg.Generator.Provider = "none"

	models, err := BuildModels(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("BuildModels: %v", err)
	}
	if models.Detector == nil || models.Generator != nil {
		t.Fatalf("unexpected models: %+v", models)
	}
	if len(models.Checks) != 0 {
		t.Errorf("local providers need no readiness checks, got %d", len(models.Checks))
	}

	p, err := BuildPipeline(cfg, models, nil)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	want := []string{strategy.NameNaive, strategy.NameClassical, strategy.NameGenerative}
	if got := p.Strategies(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("strategies = %v, want %v", got, want)
	}

	res, err := p.Process(context.Background(), "Call 555-123-4567 to reschedule. Patient is stable.", true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.Contains(res.RedactedText, "555-123-4567") {
		t.Errorf("phone number survived redaction: %q", res.RedactedText)
	}
	if len(res.KeyPoints) > cfg.Summarizer.MaxKeyPoints {
		t.Errorf("too many key points: %d", len(res.KeyPoints))
	}
}

func TestBuildModelsRemoteProvidersRegisterChecks(t *testing.T) {
	cfg := config.Default()
	models, err := BuildModels(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("BuildModels: %v", err)
	}
	for _, name := range []string{"detector", "generator"} {
		if models.Checks[name] == nil {
			t.Errorf("missing %s check", name)
		}
	}
}

func TestBuildModelsLazyProviders(t *testing.T) {
	for _, provider := range []string{"gemini", "ollama", "openai"} {
		t.Run(provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Generator.Provider = provider
			models, err := BuildModels(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("BuildModels: %v", err)
			}
			if models.Generator == nil {
				t.Error("generator not configured")
			}
		})
	}
}

func TestBuildModelsRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Provider = "magic"
	if _, err := BuildModels(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for unknown detector")
	}
	cfg = config.Default()
	cfg.Generator.Provider = "magic"
	if _, err := BuildModels(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for unknown generator")
	}
}

func TestStrategiesUseConfiguredRelevanceTerms(t *testing.T) {
	sc := config.Default().Summarizer
	sc.RelevanceMaxTerms = 10
	got, err := Strategies(sc, nil)
	if err != nil || len(got) != 3 {
		t.Fatalf("Strategies: %v, %d", err, len(got))
	}
}
