package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var ErrDispatcherClosed = errors.New("notification dispatcher closed")

const sendTimeout = 10 * time.Second

// NotificationDispatcher sends order confirmations from a bounded queue drained by a
// fixed pool of workers. Delivery failures are logged and dropped.
type NotificationDispatcher struct {
	sender   port.EmailSender
	operator string
	queue    chan domain.OrderPlaced
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotificationDispatcher(sender port.EmailSender, operatorEmail string, queueSize int, log *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		sender:   sender,
		operator: operatorEmail,
		queue:    make(chan domain.OrderPlaced, queueSize),
		log:      log,
	}
}

func (d *NotificationDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.log.Info("notification workers started", zap.Int("workers", workers))
}

func (d *NotificationDispatcher) Enqueue(ctx context.Context, event domain.OrderPlaced) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the workers to drain the queue.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *NotificationDispatcher) workerLoop(id int) {
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		d.Deliver(ctx, event)
		cancel()
		d.log.Debug("notification handled", zap.Int("worker", id), zap.String("order_id", event.OrderID))
	}
}

// Deliver sends the buyer confirmation and the operator notice. Each send is independent.
func (d *NotificationDispatcher) Deliver(ctx context.Context, event domain.OrderPlaced) {
	messages := []struct {
		to, subject, body string
	}{
		{
			to:      event.Email,
			subject: "Order Confirmation",
			body:    fmt.Sprintf("Thank you for your order #%s! We'll process it soon.", event.OrderID),
		},
		{
			to:      d.operator,
			subject: "New Order Received",
			body:    fmt.Sprintf("New order #%s placed by %s.", event.OrderID, event.Name),
		},
	}

	for _, m := range messages {
		if m.to == "" {
			continue
		}
		if err := d.sender.SendEmail(ctx, m.to, m.subject, m.body); err != nil {
			nerr := &domain.NotificationError{To: m.to, Err: err}
			d.log.Warn("notification failed",
				zap.String("order_id", event.OrderID),
				zap.String("subject", m.subject),
				zap.Error(nerr),
			)
		}
	}
}
