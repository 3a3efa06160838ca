package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
}

type LoginSubscriber interface {
	HandleLogin(ctx context.Context, event domain.LoginEvent) error
}

// OrderPlacedHandler accepts decoded OrderPlaced events for notification.
type OrderPlacedHandler interface {
	Enqueue(ctx context.Context, event domain.OrderPlaced) error
}
