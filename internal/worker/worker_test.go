package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/strategy"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
)

type recorder struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) PublishBatch(ctx context.Context, evs []kafka.Event) error {
	for _, ev := range evs {
		if err := r.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

type memStore struct {
	mu    sync.Mutex
	saved []*pipeline.Result
}

func (m *memStore) Save(_ context.Context, res *pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, res)
	return nil
}

type detector struct{ err error }

func (d detector) Detect(context.Context, string, []phi.Type) ([]phi.Entity, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []phi.Entity{{Text: "Smith", Type: phi.Person, Confidence: 0.9}}, nil
}

type fixture struct {
	worker  *Worker
	store   *memStore
	results *recorder
	agg     *analytics.Aggregator
}

func newFixture(det phi.Detector) *fixture {
	f := &fixture{store: &memStore{}, results: &recorder{}, agg: analytics.NewAggregator()}
	p := pipeline.New(pipeline.Options{
		Detector:   det,
		Strategies: []strategy.Strategy{strategy.NewNaive(3)},
	})
	f.worker = New(Options{Pipeline: p, Store: f.store, Results: f.results, Events: f.agg})
	return f
}

func encode(t *testing.T, ev DocumentEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleMessageProcessesDocument(t *testing.T) {
	f := newFixture(detector{})
	ev := DocumentEvent{DocumentID: "doc-1", Text: "Dr. Smith saw Smith's patient.", Redact: true}
	if err := f.worker.HandleMessage()(context.Background(), []byte("doc-1"), encode(t, ev)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.store.saved) != 1 {
		t.Fatalf("expected 1 stored result, got %d", len(f.store.saved))
	}
	stored := f.store.saved[0]
	if stored.OriginalText != "" {
		t.Error("stored result kept the original text")
	}
	if stored.RedactedText != "Dr. [PERSON] saw [PERSON]'s patient." {
		t.Errorf("redacted = %q", stored.RedactedText)
	}

	if len(f.results.events) != 1 {
		t.Fatalf("expected 1 processed event, got %d", len(f.results.events))
	}
	out := f.results.events[0]
	pe, ok := out.Value.(ProcessedEvent)
	if !ok || out.Key != "doc-1" || pe.Status != StatusProcessed {
		t.Errorf("unexpected event: %+v", out)
	}
	if got := f.agg.Stats(); got.TotalDocuments != 1 || got.ByOrigin[analytics.OriginWorker] != 1 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

func TestUnredactedSummariesNeverLeaveTheWorker(t *testing.T) {
	f := newFixture(detector{})
	ev := DocumentEvent{DocumentID: "doc-2", Text: "Dr. Smith saw Smith's patient.", Redact: false}
	if err := f.worker.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	pe := f.results.events[0].Value.(ProcessedEvent)
	b, _ := json.Marshal(pe)
	if strings.Contains(string(b), "Smith") {
		t.Errorf("processed event leaked PHI: %s", b)
	}
}

func TestHandleMessagePoison(t *testing.T) {
	f := newFixture(detector{})
	tests := []struct {
		name  string
		value []byte
	}{
		{"malformed", []byte("{not json")},
		{"empty text", encode(t, DocumentEvent{DocumentID: "doc-3", Text: "  "})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.worker.HandleMessage()(context.Background(), nil, tt.value)
			if !errors.Is(err, kafka.ErrPoison) {
				t.Errorf("expected poison, got %v", err)
			}
		})
	}
	if len(f.store.saved) != 0 || len(f.results.events) != 0 {
		t.Error("poison messages must not produce results")
	}
}

func TestModelOutageIsRetried(t *testing.T) {
	f := newFixture(detector{err: errors.New("dial tcp: connection refused")})
	ev := DocumentEvent{DocumentID: "doc-4", Text: "Dr. Smith saw Smith's patient.", Redact: true}
	err := f.worker.HandleMessage()(context.Background(), nil, encode(t, ev))
	if !errors.Is(err, apperrors.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
	if errors.Is(err, kafka.ErrPoison) {
		t.Error("a model outage must not be committed as poison")
	}
	if len(f.results.events) != 0 {
		t.Errorf("a document awaiting redelivery must not be reported, got %d events", len(f.results.events))
	}
	if f.agg.Stats().FailedDocuments != 0 {
		t.Error("a retried document must not be counted as failed")
	}
}

type failingProcessor struct{ err error }

func (p failingProcessor) ProcessInput(context.Context, pipeline.Input) (*pipeline.Result, error) {
	return nil, p.err
}

func TestProcessingFailureIsReported(t *testing.T) {
	f := newFixture(detector{})
	f.worker.pipeline = failingProcessor{err: errors.New("segmenter exploded at 10.0.0.7")}
	ev := DocumentEvent{DocumentID: "doc-6", Text: "Patient stable.", Redact: true}
	if err := f.worker.Handle(context.Background(), ev); err != nil {
		t.Fatalf("a non-transient failure must be committed, got %v", err)
	}
	if len(f.results.events) != 1 {
		t.Fatalf("expected one failure event, got %d", len(f.results.events))
	}
	pe := f.results.events[0].Value.(ProcessedEvent)
	if pe.Status != StatusFailed || pe.Error != apperrors.ErrInternal.Error() {
		t.Errorf("unexpected failure event: %+v", pe)
	}
	if strings.Contains(pe.Error, "10.0.0.7") {
		t.Error("failure event leaked internal details")
	}
	if f.agg.Stats().FailedDocuments != 1 {
		t.Error("failure not counted")
	}
}

func TestPublishFailureDoesNotFailMessage(t *testing.T) {
	f := newFixture(detector{})
	f.results.err = errors.New("broker down")
	ev := DocumentEvent{DocumentID: "doc-5", Text: "Patient stable.", Redact: true}
	if err := f.worker.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.store.saved) != 1 {
		t.Error("result should be stored even when publishing fails")
	}
}

func TestSubmitter(t *testing.T) {
	rec := &recorder{}
	s := NewSubmitter(rec)

	id, err := s.Submit(context.Background(), DocumentEvent{Text: "Patient stable.", Redact: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" || rec.events[0].Key != id {
		t.Errorf("event key %q does not match id %q", rec.events[0].Key, id)
	}
	ev := rec.events[0].Value.(DocumentEvent)
	if ev.SubmittedAt.IsZero() {
		t.Error("submitted_at not set")
	}

	if _, err := s.Submit(context.Background(), DocumentEvent{Text: ""}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}

	ids, err := s.SubmitBatch(context.Background(), []DocumentEvent{
		{DocumentID: "a", Text: "one"},
		{Text: "two"},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] == "" {
		t.Errorf("ids = %v", ids)
	}
	if len(rec.events) != 3 {
		t.Errorf("expected 3 published events, got %d", len(rec.events))
	}
}
