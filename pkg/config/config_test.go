package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarizer.MaxSentences != 5 {
		t.Errorf("expected maxSentences=5, got %d", cfg.Summarizer.MaxSentences)
	}
	if cfg.Summarizer.GenerativeMinWords != 100 {
		t.Errorf("expected generativeMinWords=100, got %d", cfg.Summarizer.GenerativeMinWords)
	}
	if cfg.Redaction.Mode != "span" {
		t.Errorf("expected redaction mode span, got %q", cfg.Redaction.Mode)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
summarizer:
  maxSentences: 3
redaction:
  mode: text
generator:
  provider: ollama
  model: llama3
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("MS_SERVER_PORT", "9999")
	t.Setenv("MS_KAFKA_BROKERS", "a:1,b:2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarizer.MaxSentences != 3 {
		t.Errorf("expected maxSentences=3, got %d", cfg.Summarizer.MaxSentences)
	}
	if cfg.Redaction.Mode != "text" {
		t.Errorf("expected mode text, got %q", cfg.Redaction.Mode)
	}
	if cfg.Generator.Provider != "ollama" || cfg.Generator.Model != "llama3" {
		t.Errorf("unexpected generator config: %+v", cfg.Generator)
	}
	if cfg.Generator.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Generator.Timeout)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port override 9999, got %d", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	// Unset sections keep defaults.
	if cfg.Postgres.Database != "mediscrub" {
		t.Errorf("expected default database, got %q", cfg.Postgres.Database)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Summarizer.MaxSentences = 0
	cfg.Redaction.Mode = "offsets"
	cfg.Generator.Provider = "t5-local"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"maxSentences", "redaction.mode", "generator.provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
