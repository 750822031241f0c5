package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
)

// Processor runs the pipeline over one document.
type Processor interface {
	ProcessInput(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

// ResultStore persists results.
type ResultStore interface {
	Save(ctx context.Context, res *pipeline.Result) error
}

// Options configures a Worker. Store, Results, Events and Metrics are
// optional.
type Options struct {
	Pipeline Processor
	Store    ResultStore
	// Results receives a ProcessedEvent for every handled document.
	Results kafka.Publisher
	Events  analytics.Sink
	Metrics *metrics.Metrics
}

// Worker turns DocumentEvents into results.
type Worker struct {
	pipeline Processor
	store    ResultStore
	results  kafka.Publisher
	events   analytics.Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(opts Options) *Worker {
	if opts.Events == nil {
		opts.Events = analytics.Discard{}
	}
	return &Worker{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		results:  opts.Results,
		events:   opts.Events,
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "worker"),
	}
}

// HandleMessage returns the Kafka handler for the submission topic.
//
// Malformed or empty documents are poison and are committed. A model outage
// or a failed save returns an error so the consumer redelivers the message.
// Any other processing failure is reported downstream as FAILED and committed.
func (w *Worker) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			w.count("poison")
			w.logger.Error("failed to decode document event", "key", string(key), "error", err)
			return err
		}
		if strings.TrimSpace(ev.Text) == "" {
			w.count("poison")
			return fmt.Errorf("%w: document %s has no text", kafka.ErrPoison, ev.DocumentID)
		}
		return w.Handle(ctx, ev)
	}
}

// Handle processes one event.
func (w *Worker) Handle(ctx context.Context, ev DocumentEvent) error {
	if ev.DocumentID != "" {
		ctx = logger.WithDocumentID(ctx, ev.DocumentID)
	}
	log := logger.FromContext(ctx)
	start := time.Now()

	res, err := w.pipeline.ProcessInput(ctx, pipeline.Input{
		DocumentID: ev.DocumentID,
		Source:     ev.Source,
		Text:       ev.Text,
		Redact:     ev.Redact,
	})
	if errors.Is(err, apperrors.ErrModelUnavailable) {
		w.count("retry")
		log.Warn("model unavailable, leaving document for redelivery", "error", err)
		return err
	}
	if err != nil {
		w.count("failed")
		w.events.Emit(analytics.Failed(ev.DocumentID, analytics.OriginWorker, err))
		w.publish(ctx, ProcessedEvent{
			DocumentID:  ev.DocumentID,
			Status:      StatusFailed,
			Error:       publicError(err),
			ProcessedAt: time.Now().UTC(),
		})
		log.Error("document processing failed", "error", err)
		return nil
	}

	stored := res.WithoutPHI()
	if w.store != nil {
		if err := w.store.Save(ctx, stored); err != nil {
			w.count("failed")
			return fmt.Errorf("saving document %s: %w", res.DocumentID, err)
		}
	}

	status := StatusProcessed
	if res.Degraded() {
		status = StatusDegraded
	}
	w.publish(ctx, ProcessedEvent{
		DocumentID:  res.DocumentID,
		Status:      status,
		Result:      stored,
		ProcessedAt: res.ProcessedAt,
	})

	pe := analytics.Processed(res, analytics.OriginWorker)
	pe.Words = document.WordCount(ev.Text)
	pe.LatencyMs = time.Since(start).Milliseconds()
	w.events.Emit(pe)
	w.count(strings.ToLower(status))

	log.Info("document processed", "status", status, "entities", res.EntityCount, "duration_ms", pe.LatencyMs)
	return nil
}

func (w *Worker) publish(ctx context.Context, ev ProcessedEvent) {
	if w.results == nil {
		return
	}
	if err := w.results.Publish(ctx, kafka.Event{Key: ev.DocumentID, Value: ev}); err != nil {
		w.logger.Error("failed to publish processed event", "document_id", ev.DocumentID, "error", err)
	}
}

func (w *Worker) count(status string) {
	if w.metrics != nil {
		w.metrics.EventsConsumedTotal.WithLabelValues(status).Inc()
	}
}

// publicError keeps model and transport details out of published events.
func publicError(err error) string {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, apperrors.ErrModelUnavailable):
		return apperrors.ErrModelUnavailable.Error()
	}
	return apperrors.ErrInternal.Error()
}
