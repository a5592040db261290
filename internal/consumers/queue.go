package consumers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"agentsplatform/internal/adapters/kafka"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// DefaultProcessTimeout bounds one message, from agent call to delivered reply
const DefaultProcessTimeout = 2 * time.Minute

// Queue accepts inbound messages for asynchronous handling
type Queue interface {
	Enqueue(ctx context.Context, msg *message.Message) error
}

// Publisher writes events to a topic (implemented by kafka.Producer)
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// KafkaQueue places messages on the inbound topic, keyed by user so one
// user's messages stay ordered
type KafkaQueue struct {
	producer Publisher
}

// NewKafkaQueue creates a queue backed by the inbound topic
func NewKafkaQueue(producer Publisher) *KafkaQueue {
	return &KafkaQueue{producer: producer}
}

// Enqueue publishes msg
func (q *KafkaQueue) Enqueue(ctx context.Context, msg *message.Message) error {
	key := string(msg.Platform) + ":" + msg.UserID
	if err := q.producer.Publish(ctx, kafka.TopicInboundMessages, key, msg); err != nil {
		return errors.Wrap(err, "enqueue inbound message")
	}
	return nil
}

// LocalQueue handles messages in-process with bounded concurrency
type LocalQueue struct {
	handler *Handler
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
	log     *logger.Logger
}

// NewLocalQueue creates an in-process queue running at most concurrency handlers at once
func NewLocalQueue(handler *Handler, concurrency int64, timeout time.Duration) *LocalQueue {
	if concurrency <= 0 {
		concurrency = 16
	}
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &LocalQueue{
		handler: handler,
		sem:     semaphore.NewWeighted(concurrency),
		timeout: timeout,
		log:     logger.Get().With("component", "local_queue"),
	}
}

// Enqueue starts handling msg in the background. It blocks while the queue is
// full and fails when ctx ends first.
func (q *LocalQueue) Enqueue(ctx context.Context, msg *message.Message) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(errors.ErrUnavailable, "inbound queue full")
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				q.log.Errorw("Inbound handler panicked", "panic", r, "agent_id", msg.AgentID)
			}
		}()

		processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
		defer cancel()
		_ = q.handler.Handle(processCtx, msg)
	}()
	return nil
}

// Wait blocks until every enqueued message is handled or ctx ends
func (q *LocalQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.ErrTimeout, "waiting for inbound messages")
	}
}
