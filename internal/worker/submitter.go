package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
)

// Submitter publishes documents to the submission topic.
type Submitter struct {
	producer kafka.Publisher
	logger   *slog.Logger
}

func NewSubmitter(producer kafka.Publisher) *Submitter {
	return &Submitter{
		producer: producer,
		logger:   slog.Default().With("component", "submitter"),
	}
}

// Submit assigns an ID when the event has none and publishes it keyed by
// that ID. It returns the ID.
func (s *Submitter) Submit(ctx context.Context, ev DocumentEvent) (string, error) {
	if strings.TrimSpace(ev.Text) == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, 400, "text is required")
	}
	if ev.DocumentID == "" {
		ev.DocumentID = uuid.NewString()
	}
	ev.SubmittedAt = time.Now().UTC()
	if err := s.producer.Publish(ctx, kafka.Event{Key: ev.DocumentID, Value: ev}); err != nil {
		return "", fmt.Errorf("publishing document %s: %w", ev.DocumentID, err)
	}
	s.logger.Debug("document submitted", "document_id", ev.DocumentID, "redact", ev.Redact)
	return ev.DocumentID, nil
}

// SubmitBatch publishes every event in one write. IDs are returned in input
// order.
func (s *Submitter) SubmitBatch(ctx context.Context, evs []DocumentEvent) ([]string, error) {
	ids := make([]string, len(evs))
	batch := make([]kafka.Event, 0, len(evs))
	now := time.Now().UTC()
	for i, ev := range evs {
		if strings.TrimSpace(ev.Text) == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "document %d: text is required", i)
		}
		if ev.DocumentID == "" {
			ev.DocumentID = uuid.NewString()
		}
		ev.SubmittedAt = now
		ids[i] = ev.DocumentID
		batch = append(batch, kafka.Event{Key: ev.DocumentID, Value: ev})
	}
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}
	if err := s.producer.PublishBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("publishing %d documents: %w", len(batch), err)
	}
	return ids, nil
}
