package generative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/modelguard"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
)

func TestHTTPGeneratorSendsParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if !strings.HasPrefix(req.Text, "summarize: ") {
			t.Errorf("missing task prefix: %q", req.Text)
		}
		if req.Params.NumBeams != 4 || req.Params.MaxLength != 300 || req.Params.MinLength != 80 {
			t.Errorf("unexpected params: %+v", req.Params)
		}
		json.NewEncoder(w).Encode(summarizeResponse{Summary: "short summary"})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "t5-small", "", time.Second)
	got, err := g.Generate(context.Background(), "long clinical note", DefaultParams())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "short summary" {
		t.Errorf("got %q", got)
	}
}

func TestHTTPGeneratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPGenerator(srv.URL, "", "", time.Second).Generate(context.Background(), "x", DefaultParams()); err == nil {
		t.Fatal("expected an error")
	}
}

type countingGenerator struct{ calls atomic.Int32 }

func (c *countingGenerator) Generate(context.Context, string, Params) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestLazyBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	inner := &countingGenerator{}
	lazy := NewLazy(func() (Generator, error) {
		builds.Add(1)
		return inner, nil
	})
	if builds.Load() != 0 {
		t.Fatal("constructor must not run before first use")
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lazy.Generate(context.Background(), "text", DefaultParams())
		}()
	}
	wg.Wait()
	if builds.Load() != 1 {
		t.Errorf("builds = %d, want 1", builds.Load())
	}
	if inner.calls.Load() != 8 {
		t.Errorf("calls = %d, want 8", inner.calls.Load())
	}
}

func TestLazyRemembersFailure(t *testing.T) {
	errLoad := errors.New("weights missing")
	lazy := NewLazy(func() (Generator, error) { return nil, errLoad })
	for i := 0; i < 2; i++ {
		if _, err := lazy.Generate(context.Background(), "x", DefaultParams()); !errors.Is(err, errLoad) {
			t.Errorf("call %d: expected load error, got %v", i, err)
		}
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, Params) (string, error) {
	return "", errors.New("oom")
}

func TestGuardedSignalsModelUnavailable(t *testing.T) {
	g := NewGuarded(failingGenerator{}, modelguard.New("generator", modelguard.Options{}))
	if _, err := g.Generate(context.Background(), "x", DefaultParams()); !errors.Is(err, apperrors.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestInstructionMentionsBounds(t *testing.T) {
	got := instruction("note", DefaultParams())
	if !strings.Contains(got, "80 to 300") || !strings.HasSuffix(got, "note") {
		t.Errorf("unexpected instruction: %q", got)
	}
}
