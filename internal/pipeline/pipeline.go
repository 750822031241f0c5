// Package pipeline runs detection, redaction and every summarization
// strategy over a document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/redact"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/strategy"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/tracing"
)

// Options configures a Pipeline.
type Options struct {
	// Detector may be nil, in which case any request to redact fails.
	Detector   phi.Detector
	Redactor   *redact.Redactor
	Strategies []strategy.Strategy
	// KeyPoints is the number of key points attached to results; zero
	// disables them.
	KeyPoints int
	Workers   int
	Metrics   *metrics.Metrics
}

// Pipeline is safe for concurrent use. It holds no per-document state.
type Pipeline struct {
	detector   phi.Detector
	redactor   *redact.Redactor
	strategies []strategy.Strategy
	keyPoints  int
	workers    int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Redactor == nil {
		opts.Redactor = redact.New(redact.ModeSpan)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{
		detector:   opts.Detector,
		redactor:   opts.Redactor,
		strategies: opts.Strategies,
		keyPoints:  opts.KeyPoints,
		workers:    opts.Workers,
		metrics:    opts.Metrics,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

// Strategies returns the configured strategy names in run order.
func (p *Pipeline) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// Process redacts text when asked and runs every strategy over the working
// text. A detector failure with redaction requested fails the call; a
// strategy failure degrades only that strategy's summary.
func (p *Pipeline) Process(ctx context.Context, text string, redactPHI bool) (*Result, error) {
	return p.process(ctx, Input{Text: text, Redact: redactPHI})
}

// ProcessInput is Process for a document that already has an ID or source.
func (p *Pipeline) ProcessInput(ctx context.Context, in Input) (*Result, error) {
	return p.process(ctx, in)
}

func (p *Pipeline) process(ctx context.Context, in Input) (*Result, error) {
	if in.DocumentID == "" {
		in.DocumentID = uuid.NewString()
	}
	ctx = logger.WithDocumentID(ctx, in.DocumentID)
	ctx, span := tracing.StartSpan(ctx, "pipeline.process", logger.RequestID(ctx))
	span.SetAttr("document_id", in.DocumentID)
	span.SetAttr("redact", in.Redact)
	log := logger.FromContext(ctx)
	start := time.Now()

	res := &Result{
		DocumentID:   in.DocumentID,
		Source:       in.Source,
		OriginalText: in.Text,
		Summaries:    make(map[string]SummaryResult, len(p.strategies)),
	}
	if p.metrics != nil {
		p.metrics.DocumentWords.Observe(float64(document.WordCount(in.Text)))
	}

	working := in.Text
	if in.Redact {
		red, err := p.redact(ctx, in.Text)
		if err != nil {
			span.EndErr(err)
			span.Log(log)
			p.countDocument("failed")
			log.Error("redaction failed", "error", err)
			return nil, err
		}
		res.Redacted = true
		res.RedactedText = red.RedactedText
		res.EntityCount = red.EntityCount
		res.EntitiesByType = red.EntitiesByType
		working = red.RedactedText
	}

	for _, s := range p.strategies {
		res.Summaries[s.Name()] = p.summarize(ctx, s, working)
	}
	if p.keyPoints > 0 {
		res.KeyPoints = strategy.NaiveKeyPoints(working, p.keyPoints)
	}
	res.ProcessedAt = time.Now().UTC()

	status := "ok"
	if res.Degraded() {
		status = "degraded"
	}
	p.countDocument(status)
	span.SetAttr("status", status)
	span.End()
	span.Log(log)
	log.Info("document processed",
		"status", status,
		"redacted", res.Redacted,
		"entities", res.EntityCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Redact detects entities in text and replaces them with placeholders.
func (p *Pipeline) Redact(ctx context.Context, text string) (*Redaction, error) {
	return p.redact(ctx, text)
}

func (p *Pipeline) redact(ctx context.Context, text string) (*Redaction, error) {
	ctx, span := tracing.StartChildSpan(ctx, "redact")
	if p.detector == nil {
		err := apperrors.ModelUnavailable("detector", fmt.Errorf("no entity detector configured"))
		span.EndErr(err)
		return nil, err
	}
	entities, err := p.detector.Detect(ctx, text, phi.Labels)
	if err != nil {
		if !errors.Is(err, apperrors.ErrModelUnavailable) {
			err = apperrors.ModelUnavailable("detector", err)
		}
		span.EndErr(err)
		return nil, fmt.Errorf("detecting entities: %w", err)
	}
	out := &Redaction{
		RedactedText:   p.redactor.Redact(text, entities),
		EntityCount:    len(entities),
		EntitiesByType: phi.CountByType(entities),
	}
	span.SetAttr("entities", out.EntityCount)
	span.SetAttr("mode", string(p.redactor.Mode()))
	span.End()
	return out, nil
}

func (p *Pipeline) summarize(ctx context.Context, s strategy.Strategy, text string) SummaryResult {
	name := s.Name()
	ctx, span := tracing.StartChildSpan(ctx, "strategy."+name)
	start := time.Now()
	summary, err := s.Summarize(ctx, text)
	if p.metrics != nil {
		p.metrics.StrategyLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.EndErr(err)
		if p.metrics != nil {
			p.metrics.StrategyFallbacksTotal.WithLabelValues(name).Inc()
		}
		logger.FromContext(ctx).Warn("strategy failed, using original text",
			"strategy", name,
			"error", err,
		)
		return SummaryResult{Strategy: name, Text: text, Degraded: true, Error: err.Error()}
	}
	span.End()
	return SummaryResult{Strategy: name, Text: summary}
}

func (p *Pipeline) countDocument(status string) {
	if p.metrics != nil {
		p.metrics.DocumentsProcessedTotal.WithLabelValues(status).Inc()
	}
}

// ProcessBatch processes documents in parallel, at most Workers at a time.
// Per-document failures are reported in the results; only cancellation of
// ctx stops the batch early.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []Input) ([]BatchResult, error) {
	results := make([]BatchResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, in := range inputs {
		results[i].Input = in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			res, err := p.process(gctx, in)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}
