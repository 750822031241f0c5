package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
)

type echo struct {
	Text string `json:"text"`
}

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)
	return ln.Addr().String()
}

func newTestServer(t *testing.T, timeout time.Duration) (*Server, *Client) {
	t.Helper()
	s := NewServer(timeout)
	s.Register("Test.Echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var in echo
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "bad params")
		}
		if logger.RequestID(ctx) == "" {
			return nil, errors.New("missing request id")
		}
		return echo{Text: in.Text}, nil
	})
	s.Register("Test.Unavailable", func(context.Context, json.RawMessage) (any, error) {
		return nil, apperrors.ModelUnavailable("detector", errors.New("dial tcp 10.0.0.7:8500: refused"))
	})
	s.Register("Test.Panic", func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	})
	s.Register("Test.Slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return nil, errors.New("too slow")
		}
	})
	addr := startServer(t, s)
	c := NewClient(addr)
	t.Cleanup(func() { c.Close() })
	return s, c
}

func TestCallRoundTrip(t *testing.T) {
	s, c := newTestServer(t, time.Second)
	if s.Methods() != 4 {
		t.Errorf("methods = %d, want 4", s.Methods())
	}
	for _, text := range []string{"first", "second"} {
		var out echo
		if err := c.Call(context.Background(), "Test.Echo", echo{Text: text}, &out); err != nil {
			t.Fatalf("call: %v", err)
		}
		if out.Text != text {
			t.Errorf("got %q, want %q", out.Text, text)
		}
	}
}

func TestCallErrors(t *testing.T) {
	_, c := newTestServer(t, 50*time.Millisecond)
	tests := []struct {
		method string
		want   error
		code   int
	}{
		{"Test.Missing", apperrors.ErrDocumentNotFound, 404},
		{"Test.Unavailable", apperrors.ErrModelUnavailable, 503},
		{"Test.Panic", apperrors.ErrInternal, 500},
		{"Test.Slow", apperrors.ErrInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			err := c.Call(context.Background(), tt.method, echo{}, nil)
			var rpcErr *Error
			if !errors.As(err, &rpcErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if rpcErr.Code != tt.code {
				t.Errorf("code = %d, want %d", rpcErr.Code, tt.code)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
		})
	}
}

func TestErrorsDoNotLeakDetail(t *testing.T) {
	_, c := newTestServer(t, time.Second)
	err := c.Call(context.Background(), "Test.Unavailable", echo{}, nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Message != "model unavailable" {
		t.Errorf("message = %v", err)
	}
}

func TestClientDeadline(t *testing.T) {
	_, c := newTestServer(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "Test.Slow", echo{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClientRedialsAfterServerRestart(t *testing.T) {
	s := NewServer(time.Second)
	s.Register("Test.Echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var in echo
		json.Unmarshal(params, &in)
		return in, nil
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	go s.ServeListener(ln)

	c := NewClient(addr)
	defer c.Close()
	if err := c.Call(context.Background(), "Test.Echo", echo{Text: "a"}, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	s.Stop()
	if err := c.Call(context.Background(), "Test.Echo", echo{Text: "b"}, nil); err == nil {
		t.Fatal("expected error after server stop")
	}

	s2 := NewServer(time.Second)
	s2.Register("Test.Echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var in echo
		json.Unmarshal(params, &in)
		return in, nil
	})
	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("address not reusable: %v", err)
	}
	go s2.ServeListener(ln2)
	defer s2.Stop()

	var out echo
	if err := c.Call(context.Background(), "Test.Echo", echo{Text: "c"}, &out); err != nil {
		t.Fatalf("call after redial: %v", err)
	}
	if out.Text != "c" {
		t.Errorf("got %q", out.Text)
	}
}
