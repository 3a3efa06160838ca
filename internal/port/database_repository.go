package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type ProductCatalog interface {
	// GetProduct returns domain.ErrProductNotFound when the product does not exist
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// GetProducts returns the products that still exist, keyed by id
	GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, id int64, profile domain.Profile) error
}

type OrderRepository interface {
	// CreateOrder persists the order, its items and the outbox event, and deletes the
	// user's persistent cart lines, all in one transaction
	CreateOrder(ctx context.Context, order domain.Order, event domain.OutboxEvent, clearCartOf *int64) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error)

	ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error)

	// UpdateStatus changes the status only if it still equals from
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
}

type OutboxRepository interface {
	GetUnpublishedEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id string) error
}
