package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/port"
)

// BreakerSender stops calling a failing mail provider for a while instead of making
// every queued notification wait for its timeout.
type BreakerSender struct {
	next port.EmailSender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewBreakerSender(next port.EmailSender, settings BreakerSettings, log *zap.Logger) *BreakerSender {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("mail circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerSender{next: next, cb: cb}
}

func (b *BreakerSender) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.SendEmail(ctx, to, subject, body)
	})
	return err
}

func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}
