// Package rpc is a small JSON-over-TCP RPC layer for internal callers.
//
// Frames are newline-delimited JSON on a persistent connection. A client
// sends one Request and reads one Response at a time.
//
//	s := rpc.NewServer(30 * time.Second)
//	s.Register("Pipeline.Redact", func(ctx context.Context, params json.RawMessage) (any, error) {
//	    ...
//	})
//	go s.Serve(":9000")
//
//	c := rpc.NewClient("localhost:9000")
//	var out RedactResponse
//	err := c.Call(ctx, "Pipeline.Redact", RedactRequest{Text: text}, &out)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
)

// HandlerFunc serves one method.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format of a call. ID doubles as the request ID in
// server logs.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format of a reply. Code is an HTTP status and is set
// only with Error.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

type Server struct {
	handlers map[string]HandlerFunc
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server. A positive timeout bounds every call.
func NewServer(timeout time.Duration) *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		timeout:  timeout,
		logger:   slog.Default().With("component", "rpc-server"),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// Register binds a "Service.Method" name to handler.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Methods returns the number of registered methods.
func (s *Server) Methods() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Serve listens on addr and blocks until Stop.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts connections on ln until Stop.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method), Code: 404}
	}

	ctx := logger.WithRequestID(context.Background(), req.ID)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := s.call(ctx, handler, req.Params)
	if err != nil {
		code := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Warn("rpc call failed",
			"method", req.Method,
			"code", code,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Response{ID: req.ID, Error: publicMessage(err, code), Code: code}
	}
	return Response{ID: req.ID, Data: data}
}

func (s *Server) call(ctx context.Context, handler HandlerFunc, params json.RawMessage) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("rpc handler panic", "panic", rec)
			err = fmt.Errorf("%w: handler panic", apperrors.ErrInternal)
		}
	}()
	return handler(ctx, params)
}

// publicMessage keeps internal detail out of replies.
func publicMessage(err error, code int) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if sentinel := sentinelFor(code); sentinel != nil && sentinel != apperrors.ErrInternal {
		return sentinel.Error()
	}
	return apperrors.ErrInternal.Error()
}

// Stop closes the listener and every open connection, then waits for
// in-flight calls.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
