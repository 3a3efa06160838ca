package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartRepository stores cart lines for one kind of owner. Session and user carts are
// separate adapters behind the same interface.
type CartRepository interface {
	// Add creates the line or increments its quantity
	Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) error

	// SetQuantity overwrites an existing line, returns false when the line does not exist
	SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (bool, error)

	// MergeMax sets the line quantity to max(existing, quantity), creating it if absent
	MergeMax(ctx context.Context, owner domain.Owner, productID int64, quantity int) error

	Remove(ctx context.Context, owner domain.Owner, productID int64) error

	Clear(ctx context.Context, owner domain.Owner) error

	Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error)
}
