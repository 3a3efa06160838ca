package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/port"
)

// OutboxPoller publishes events written alongside orders. Delivery is at least once:
// an event published but not marked goes out again on the next tick.
type OutboxPoller struct {
	repo      port.OutboxRepository
	publisher port.EventPublisher
	interval  time.Duration
	batch     int
	log       *zap.Logger
}

func NewOutboxPoller(repo port.OutboxRepository, publisher port.EventPublisher, interval time.Duration, batch int, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{repo: repo, publisher: publisher, interval: interval, batch: batch, log: log}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents returns the number of events it published.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnpublishedEvents(ctx, p.batch)
	if err != nil {
		p.log.Error("fetch outbox events failed", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.log.Error("publish event failed", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		if err := p.repo.MarkEventPublished(ctx, event.ID); err != nil {
			p.log.Error("mark event published failed", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		published++
	}
	return published
}
