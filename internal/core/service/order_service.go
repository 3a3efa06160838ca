package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

type OrderService struct {
	orders port.OrderRepository
	log    *zap.Logger
}

func NewOrderService(orders port.OrderRepository, log *zap.Logger) *OrderService {
	return &OrderService{orders: orders, log: log}
}

func (s *OrderService) List(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != "" {
		if _, ok := domain.ParseOrderStatus(string(filter.Status)); !ok {
			return domain.OrderPage{}, domain.NewValidationError("status", "is invalid")
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = DefaultPerPage
	}
	if filter.PerPage > MaxPerPage {
		filter.PerPage = MaxPerPage
	}

	page, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// GetForUser hides orders of other users behind ErrOrderNotFound.
func (s *OrderService) GetForUser(ctx context.Context, userID int64, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) History(ctx context.Context, userID int64) (domain.OrderHistory, error) {
	orders, err := s.orders.ListUserOrders(ctx, userID)
	if err != nil {
		return domain.OrderHistory{}, fmt.Errorf("list user orders: %w", err)
	}

	history := domain.OrderHistory{Active: []domain.Order{}, Past: []domain.Order{}}
	for _, o := range orders {
		if o.Status.Active() {
			history.Active = append(history.Active, o)
		} else {
			history.Past = append(history.Past, o)
		}
	}
	return history, nil
}

// UpdateStatus moves an order along the transition table. Setting the current status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.NewValidationError("status", "must be one of pending, processing, shipped, delivered, cancelled")
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, id, order.Status, next); err != nil {
		return nil, err
	}

	s.log.Info("order status updated",
		zap.String("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)
	order.Status = next
	return order, nil
}
