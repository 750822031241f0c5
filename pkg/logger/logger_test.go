package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContextCarriesIDs(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithDocumentID(ctx, "doc-9")
	FromContext(ctx).Info("processed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if record["request_id"] != "req-1" {
		t.Errorf("expected request_id=req-1, got %v", record["request_id"])
	}
	if record["document_id"] != "doc-9" {
		t.Errorf("expected document_id=doc-9, got %v", record["document_id"])
	}
	if RequestID(ctx) != "req-1" {
		t.Errorf("RequestID returned %q", RequestID(ctx))
	}
}
