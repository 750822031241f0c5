// Package kafka wraps segmentio/kafka-go for the document and analytics
// topics. Producers serialise events as JSON; consumers hand raw messages
// to a MessageHandler and commit only what was handled or is unprocessable.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/resilience"
)

// ErrPoison marks a message that can never be processed (malformed payload).
// The consumer commits it and moves on instead of redelivering it forever.
var ErrPoison = errors.New("poison message")

// ErrUndelivered stops Start when a message could not be handled and was
// left uncommitted.
var ErrUndelivered = errors.New("message left undelivered")

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as part of the configured consumer group. A
// handler error other than ErrPoison is retried with backoff on the same
// message, so a later commit never skips past an unhandled document.
type Consumer struct {
	reader  messageReader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		retry:   redeliveryPolicy(),
	}
}

func redeliveryPolicy() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  math.MaxInt32,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		// Whether to keep going is decided by the consumer's own context,
		// which Retry checks between attempts. A handler error wrapping a
		// model timeout is still retryable.
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrPoison)
		},
	}
}

// Start consumes until ctx is cancelled. A message still failing at
// shutdown is left uncommitted and redelivered to the next member. Start
// never fetches past a message it could not handle: it returns
// ErrUndelivered instead.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		if !c.deliver(ctx, msg) {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping with message uncommitted", "partition", msg.Partition, "offset", msg.Offset)
				return nil
			}
			// Fetching on would let a later commit skip this offset. Stop and
			// leave it to the next group member.
			return fmt.Errorf("%w: partition %d offset %d", ErrUndelivered, msg.Partition, msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// deliver runs the handler and reports whether the message may be committed.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"value_size", len(msg.Value),
	)
	err := resilience.Retry(ctx, "kafka-handler", c.retry, func(ctx context.Context) error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPoison):
		c.logger.Warn("skipping poison message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return true
	default:
		c.logger.Error("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return false
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T. Decoding failures are
// wrapped with ErrPoison.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %w", ErrPoison, err)
	}
	return result, nil
}
