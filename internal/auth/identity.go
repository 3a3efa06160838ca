package auth

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Identity is who the current request acts for.
type Identity struct {
	Owner domain.Owner
	Role  string
	// SessionID is kept for authenticated requests too, so checkout can clear a guest cart.
	SessionID string
}

func (i Identity) IsAdmin() bool {
	return i.Owner.IsAuthenticated() && i.Role == RoleAdmin
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
