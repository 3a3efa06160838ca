package port

import (
	"context"
	"time"
)

type CheckoutGuard interface {
	// Acquire takes the per-owner checkout lock, returns false if another checkout holds it
	Acquire(ctx context.Context, ownerKey string, ttl time.Duration) (token string, ok bool, err error)

	// Release drops the lock only if it is still held with the given token
	Release(ctx context.Context, ownerKey, token string) error
}
