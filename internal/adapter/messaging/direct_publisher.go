package messaging

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// DirectPublisher hands outbox events straight to the local handler. It replaces
// Kafka in single-process deployments.
type DirectPublisher struct {
	handler port.OrderPlacedHandler
	log     *zap.Logger
}

func NewDirectPublisher(handler port.OrderPlacedHandler, log *zap.Logger) *DirectPublisher {
	return &DirectPublisher{handler: handler, log: log}
}

func (p *DirectPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	err := dispatch(ctx, p.handler, event.EventType, event.Payload)
	var perm *permanentError
	if errors.As(err, &perm) {
		// retrying cannot fix it; report as published so the outbox moves on
		p.log.Warn("dropping outbox event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	return err
}
