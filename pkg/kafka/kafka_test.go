package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
)

type sample struct {
	DocumentID string `json:"document_id"`
	Redact     bool   `json:"redact"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"document_id":"d1","redact":true}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.DocumentID != "d1" || !got.Redact {
		t.Errorf("unexpected decode result: %+v", got)
	}
}

func TestDecodeJSONMarksPoison(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte(`{not json`))
	if !errors.Is(err, ErrPoison) {
		t.Fatalf("expected ErrPoison, got %v", err)
	}
}

func TestEncodeKeepsKey(t *testing.T) {
	msg, err := encode(Event{Key: "doc-9", Value: sample{DocumentID: "doc-9"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "doc-9" {
		t.Errorf("key = %q, want doc-9", msg.Key)
	}
	if string(msg.Value) != `{"document_id":"doc-9","redact":false}` {
		t.Errorf("value = %s", msg.Value)
	}
}

func testConsumer(handler MessageHandler) *Consumer {
	retry := redeliveryPolicy()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = time.Millisecond
	return &Consumer{logger: slog.Default(), handler: handler, retry: retry}
}

func TestDeliver(t *testing.T) {
	transient := errors.New("model unavailable")
	tests := []struct {
		name       string
		failures   int
		final      error
		wantCommit bool
		wantCalls  int
	}{
		{"handled", 0, nil, true, 1},
		{"poison committed without retry", 0, ErrPoison, true, 1},
		{"transient failure retried until handled", 3, nil, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := testConsumer(func(context.Context, []byte, []byte) error {
				calls++
				if calls <= tt.failures {
					return transient
				}
				return tt.final
			})
			if got := c.deliver(context.Background(), kafka.Message{Value: []byte("{}")}); got != tt.wantCommit {
				t.Errorf("commit = %v, want %v", got, tt.wantCommit)
			}
			if calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDeliverLeavesMessageUncommittedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := testConsumer(func(context.Context, []byte, []byte) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("model unavailable")
	})
	if c.deliver(ctx, kafka.Message{}) {
		t.Fatal("message failing at shutdown must not be committed")
	}
}

func TestDeliverRetriesModelTimeouts(t *testing.T) {
	timeout := fmt.Errorf("detecting entities: %w",
		apperrors.ModelUnavailable("detector", fmt.Errorf("operation timed out: %w", context.DeadlineExceeded)))
	calls := 0
	c := testConsumer(func(context.Context, []byte, []byte) error {
		calls++
		if calls <= 3 {
			return timeout
		}
		return nil
	})
	if !c.deliver(context.Background(), kafka.Message{Value: []byte("{}")}) {
		t.Fatal("a message that eventually succeeds must be committed")
	}
	if calls != 4 {
		t.Errorf("handler calls = %d, want 4", calls)
	}
}

type fakeReader struct {
	msgs      []kafka.Message
	next      int
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.next >= len(f.msgs) {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[f.next]
	f.next++
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestStartNeverCommitsPastUndeliveredMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2, Value: []byte("stuck")}, {Offset: 3}},
		cancel: cancel,
	}
	c := testConsumer(func(_ context.Context, _ []byte, value []byte) error {
		if string(value) == "stuck" {
			return errors.New("model unavailable")
		}
		return nil
	})
	c.retry.MaxAttempts = 3
	c.reader = reader

	err := c.Start(ctx)
	if !errors.Is(err, ErrUndelivered) {
		t.Fatalf("expected ErrUndelivered, got %v", err)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 1 {
		t.Errorf("committed offsets = %v, want [1]", reader.committed)
	}
	if reader.next != 2 {
		t.Errorf("fetched %d messages, must stop at the undelivered one", reader.next)
	}
}

func TestStartCommitsHandledAndPoison(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2, Value: []byte("bad")}, {Offset: 3}},
		cancel: cancel,
	}
	c := testConsumer(func(_ context.Context, _ []byte, value []byte) error {
		if string(value) == "bad" {
			return ErrPoison
		}
		return nil
	})
	c.reader = reader

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(reader.committed) != 3 {
		t.Errorf("committed offsets = %v, want all three", reader.committed)
	}
}
