package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"agentsplatform/internal/adapters/kafka"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// InboundConsumer reads queued platform messages from Kafka and handles them
type InboundConsumer struct {
	consumer *kafka.Consumer
	handler  *Handler
	timeout  time.Duration
	log      *logger.Logger
}

// NewInboundConsumer creates a consumer of the inbound topic
func NewInboundConsumer(consumer *kafka.Consumer, handler *Handler, timeout time.Duration) *InboundConsumer {
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &InboundConsumer{
		consumer: consumer,
		handler:  handler,
		timeout:  timeout,
		log:      logger.Get().With("component", "inbound_consumer"),
	}
}

// Start consumes until ctx is cancelled
func (c *InboundConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting inbound message consumer...")

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close inbound consumer", "error", err)
			return
		}
		c.log.Info("Inbound consumer closed")
	}()

	err := c.consumer.Consume(ctx, c.handleMessage)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *InboundConsumer) handleMessage(ctx context.Context, km kafkago.Message) error {
	var msg message.Message
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, "decode inbound message: "+err.Error())
	}

	// The current message finishes even when shutdown starts mid-flight
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	return c.handler.Handle(processCtx, &msg)
}
