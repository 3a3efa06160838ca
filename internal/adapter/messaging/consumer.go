package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var errUnknownEvent = errors.New("unknown event type")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Consumer reads order events and feeds them to the notification handler. A message is
// committed once the handler accepted it, or when it can never be handled. A message the
// handler rejects is retried in place: committing a later offset of the partition would
// skip it for good.
type Consumer struct {
	reader     messageReader
	handler    port.OrderPlacedHandler
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumer(handler port.OrderPlacedHandler, topic, groupID string, log *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, handler: handler, retryDelay: defaultRetryDelay, log: log}
}

func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("order event consumer started")
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error("read message failed", zap.Error(err))
		return
	}

	if err := c.handleWithRetry(ctx, m); err != nil {
		var perm *permanentError
		if !errors.As(err, &perm) {
			// shutting down; the uncommitted offset is read again by the next consumer
			return
		}
		c.log.Warn("dropping message", zap.Int64("offset", m.Offset), zap.Error(err))
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Error("commit message failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// handleWithRetry returns nil on success, a *permanentError, or the context error.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) error {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, m)
		var perm *permanentError
		if err == nil || errors.As(err, &perm) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.Error("handle message failed, retrying",
			zap.Int64("offset", m.Offset), zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay || delay <= 0 {
			delay = maxRetryDelay
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, m kafka.Message) error {
	return dispatch(ctx, c.handler, eventType(m), m.Value)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	return ""
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func dispatch(ctx context.Context, handler port.OrderPlacedHandler, eventType string, payload []byte) error {
	if eventType != domain.EventOrderPlaced {
		return &permanentError{fmt.Errorf("%w: %q", errUnknownEvent, eventType)}
	}

	var event domain.OrderPlaced
	if err := json.Unmarshal(payload, &event); err != nil {
		return &permanentError{fmt.Errorf("decode order placed: %w", err)}
	}
	if event.OrderID == "" {
		return &permanentError{errors.New("order placed without order id")}
	}
	return handler.Enqueue(ctx, event)
}
