// Package api serves the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/store"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/worker"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
)

// Processor is the pipeline surface the API uses.
type Processor interface {
	ProcessInput(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
	Redact(ctx context.Context, text string) (*pipeline.Redaction, error)
}

// ResultStore persists processed documents.
type ResultStore interface {
	Save(ctx context.Context, res *pipeline.Result) error
	Get(ctx context.Context, id string) (*pipeline.Result, error)
	List(ctx context.Context, f store.Filter) ([]*pipeline.Result, error)
}

// ResultCache memoizes pipeline results.
type ResultCache interface {
	GetOrCompute(ctx context.Context, text string, redact bool, compute func() (*pipeline.Result, error)) (*pipeline.Result, bool, error)
	Stats(ctx context.Context) cache.Stats
	Invalidate(ctx context.Context) (int64, error)
}

// DocumentSubmitter queues documents for the worker.
type DocumentSubmitter interface {
	Submit(ctx context.Context, ev worker.DocumentEvent) (string, error)
}

// Options configures a Handler. Store, Cache and Submitter are optional.
type Options struct {
	Pipeline     Processor
	Store        ResultStore
	Cache        ResultCache
	Submitter    DocumentSubmitter
	Events       analytics.Sink
	DefaultRole  apikey.Role
	MaxBodyBytes int64
}

type Handler struct {
	pipeline    Processor
	store       ResultStore
	cache       ResultCache
	submitter   DocumentSubmitter
	events      analytics.Sink
	defaultRole apikey.Role
	maxBody     int64
	logger      *slog.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Events == nil {
		opts.Events = analytics.Discard{}
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = apikey.RoleFrontDesk
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	return &Handler{
		pipeline:    opts.Pipeline,
		store:       opts.Store,
		cache:       opts.Cache,
		submitter:   opts.Submitter,
		events:      opts.Events,
		defaultRole: opts.DefaultRole,
		maxBody:     opts.MaxBodyBytes,
		logger:      slog.Default().With("component", "api-handler"),
	}
}

// ProcessRequest is the body of POST /api/v1/process and /api/v1/documents,
// and the params of the Pipeline.Process RPC.
type ProcessRequest struct {
	Text       string `json:"text"`
	Redact     bool   `json:"redact"`
	DocumentID string `json:"document_id,omitempty"`
	Source     string `json:"source,omitempty"`
}

// RedactRequest is the body of POST /api/v1/redact and the params of the
// Pipeline.Redact RPC.
type RedactRequest struct {
	Text string `json:"text"`
}

// role is the caller's key role, or the configured default when auth is
// disabled.
func (h *Handler) role(ctx context.Context) apikey.Role {
	if info := GetKeyInfo(ctx); info != nil {
		return info.Role
	}
	return h.defaultRole
}

// Process runs the full pipeline. Callers whose role may not view PHI get
// redaction whether or not they asked for it.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	ctx := r.Context()
	res, err := h.process(ctx, req, h.role(ctx).MustRedact(req.Redact), analytics.OriginAPI)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// process runs the pipeline through the cache, stores the result and emits
// the analytics event. The returned result never carries the original text.
func (h *Handler) process(ctx context.Context, req ProcessRequest, redact bool, origin string) (*pipeline.Result, error) {
	id := req.DocumentID
	if id == "" {
		id = uuid.NewString()
	}
	in := pipeline.Input{DocumentID: id, Source: req.Source, Text: req.Text, Redact: redact}
	start := time.Now()

	compute := func() (*pipeline.Result, error) {
		res, err := h.pipeline.ProcessInput(ctx, in)
		if err != nil {
			return nil, err
		}
		// The caller already holds the input.
		res.OriginalText = ""
		return res, nil
	}
	var (
		res *pipeline.Result
		hit bool
		err error
	)
	// Unredacted results carry PHI in summaries and key points.
	if h.cache != nil && redact {
		res, hit, err = h.cache.GetOrCompute(ctx, req.Text, redact, compute)
	} else {
		res, err = compute()
	}
	if err != nil {
		h.emitFailure(ctx, id, origin, err)
		return nil, err
	}
	if hit || res.DocumentID != id {
		cp := *res
		cp.DocumentID = id
		cp.Source = req.Source
		res = &cp
	}

	if h.store != nil {
		if err := h.store.Save(ctx, res); err != nil {
			logger.FromContext(ctx).Error("saving result failed", "document_id", id, "error", err)
		}
	}
	h.events.Emit(processedEvent(ctx, res, origin, hit, document.WordCount(req.Text), time.Since(start)))
	return res, nil
}

// Submit queues a document for the worker and answers 202 with its ID.
// The result is fetched later from the result store.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		h.writeError(w, http.StatusNotImplemented, "asynchronous processing not configured")
		return
	}
	var req ProcessRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	ctx := r.Context()
	id, err := h.submitter.Submit(ctx, worker.DocumentEvent{
		DocumentID: req.DocumentID,
		Source:     req.Source,
		Text:       req.Text,
		Redact:     h.role(ctx).MustRedact(req.Redact),
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": id,
		"status":      "SUBMITTED",
	})
}

// Redact returns the redacted text only.
func (h *Handler) Redact(w http.ResponseWriter, r *http.Request) {
	var req RedactRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	red, err := h.redact(r.Context(), req.Text, analytics.OriginAPI)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, red)
}

func (h *Handler) redact(ctx context.Context, text, origin string) (*pipeline.Redaction, error) {
	start := time.Now()
	red, err := h.pipeline.Redact(ctx, text)
	if err != nil {
		h.emitFailure(ctx, "", origin, err)
		return nil, err
	}
	ev := analytics.Redacted(red, origin)
	ev.Words = document.WordCount(text)
	ev.LatencyMs = time.Since(start).Milliseconds()
	ev.RequestID = logger.RequestID(ctx)
	h.events.Emit(ev)
	return red, nil
}

// GetResult loads a stored result by ID.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusNotImplemented, "result store not configured")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	res, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListResults pages through stored results, newest first.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusNotImplemented, "result store not configured")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.store.List(r.Context(), f)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{Limit: 20}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			return f, errors.New("limit must be between 1 and 100")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be non-negative")
		}
		f.Offset = n
	}
	if v := q.Get("redacted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("redacted must be a boolean")
		}
		f.Redacted = &b
	}
	return f, nil
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"stats":   h.cache.Stats(r.Context()),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "deleted": 0})
		return
	}
	n, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "deleted": n})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) emitFailure(ctx context.Context, id, origin string, err error) {
	ev := analytics.Failed(id, origin, err)
	ev.RequestID = logger.RequestID(ctx)
	h.events.Emit(ev)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to a status. Internal details stay in the log.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := http.StatusText(status)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		msg = appErr.Message
	case errors.Is(err, apperrors.ErrModelUnavailable):
		msg = "model unavailable"
	}
	if status >= 500 {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, status, msg)
}

func processedEvent(ctx context.Context, res *pipeline.Result, origin string, hit bool, words int, latency time.Duration) analytics.ProcessingEvent {
	ev := analytics.Processed(res, origin)
	ev.CacheHit = hit
	ev.Words = words
	ev.LatencyMs = latency.Milliseconds()
	ev.RequestID = logger.RequestID(ctx)
	return ev
}
