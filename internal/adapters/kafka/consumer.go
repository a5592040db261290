package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/retry"
)

// Consumer reads one topic as part of a consumer group
type Consumer struct {
	reader  *kafka.Reader
	backoff retry.Policy
	log     *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string

	// MaxBytes bounds a single fetch, 10MB when zero
	MaxBytes int
}

// NewConsumer creates a group reader starting from the earliest uncommitted offset
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10e6
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader: reader,
		backoff: retry.Policy{
			MinBackoff: 500 * time.Millisecond,
			MaxBackoff: 30 * time.Second,
			Multiplier: 2,
		},
		log: logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic, "group_id", cfg.GroupID),
	}
}

// MessageHandler processes a single message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume calls handler for every message until ctx is cancelled.
// Handler errors are logged and the offset still advances.
// Consecutive read failures back off up to 30s.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	failures := 0

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			wait := c.backoff.Backoff(failures)
			c.log.Errorw("Failed to read message", "error", err, "failures", failures, "retry_in", wait)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		if err := handler(ctx, msg); err != nil {
			c.log.Errorw("Failed to handle message",
				"key", string(msg.Key),
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Close closes the underlying reader and leaves the group
func (c *Consumer) Close() error {
	return c.reader.Close()
}
