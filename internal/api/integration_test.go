//go:build integration

// Integration tests run the HTTP surface against a real PostgreSQL result
// store and key registry.
//
//	go test -v -tags=integration ./internal/api/...
package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/store"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "mediscrub_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "mediscrub"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

type integrationServer struct {
	*server
	keys map[apikey.Role]string
}

func newIntegrationServer(t *testing.T, db *postgres.Client) *integrationServer {
	t.Helper()
	ctx := context.Background()

	results := store.New(db)
	if err := results.Migrate(ctx); err != nil {
		t.Fatalf("migrate results: %v", err)
	}
	validator := apikey.NewValidator(db)
	if err := validator.Migrate(ctx); err != nil {
		t.Fatalf("migrate keys: %v", err)
	}

	keys := map[apikey.Role]string{}
	for _, role := range []apikey.Role{apikey.RoleClinician, apikey.RoleFrontDesk} {
		raw, err := validator.CreateKey(ctx, "integration-"+string(role), role, 1000, nil)
		if err != nil {
			t.Fatalf("create %s key: %v", role, err)
		}
		t.Cleanup(func() { validator.RevokeKey(context.Background(), raw) })
		keys[role] = raw
	}

	limiter := ratelimit.New(time.Minute)
	t.Cleanup(limiter.Stop)

	h := NewHandler(Options{
		Pipeline:    testPipeline(fakeDetector{}),
		Store:       results,
		DefaultRole: apikey.RoleFrontDesk,
	})
	router := NewRouter(h, RouterOptions{Validator: validator, Limiter: limiter})
	return &integrationServer{server: &server{handler: router}, keys: keys}
}

func TestIntegrationRejectsUnknownKey(t *testing.T) {
	s := newIntegrationServer(t, skipIfNoPostgres(t))
	for _, key := range []string{"", "not-a-key"} {
		rec := s.do(http.MethodPost, "/api/v1/process", key, ProcessRequest{Text: note})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("key %q: expected 401, got %d", key, rec.Code)
		}
	}
}

func TestIntegrationRevokedKey(t *testing.T) {
	db := skipIfNoPostgres(t)
	s := newIntegrationServer(t, db)
	raw := s.keys[apikey.RoleClinician]
	if err := apikey.NewValidator(db).RevokeKey(context.Background(), raw); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rec := s.do(http.MethodPost, "/api/v1/process", raw, ProcessRequest{Text: note}); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked key, got %d", rec.Code)
	}
}

func TestIntegrationResultRoundTrip(t *testing.T) {
	s := newIntegrationServer(t, skipIfNoPostgres(t))

	tests := []struct {
		role         apikey.Role
		wantRedacted bool
	}{
		{apikey.RoleClinician, false},
		{apikey.RoleFrontDesk, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			key := s.keys[tt.role]
			res := decodeResult(t, s.do(http.MethodPost, "/api/v1/process", key, ProcessRequest{Text: note, Source: "integration"}))
			if res.Redacted != tt.wantRedacted {
				t.Fatalf("redacted = %v, want %v", res.Redacted, tt.wantRedacted)
			}

			stored := decodeResult(t, s.do(http.MethodGet, "/api/v1/results/"+res.DocumentID, key, nil))
			if stored.OriginalText != "" {
				t.Error("stored result carries the original text")
			}
			if !tt.wantRedacted && len(stored.Summaries) != 0 {
				t.Error("summaries of an unredacted run must not be persisted")
			}
			if tt.wantRedacted && stored.RedactedText != res.RedactedText {
				t.Errorf("redacted text = %q, want %q", stored.RedactedText, res.RedactedText)
			}
		})
	}
}

func TestIntegrationResultNotFound(t *testing.T) {
	s := newIntegrationServer(t, skipIfNoPostgres(t))
	rec := s.do(http.MethodGet, "/api/v1/results/does-not-exist", s.keys[apikey.RoleClinician], nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
