package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const checkoutLockPrefix = "checkout:lock:"

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter holds the per-owner checkout lock.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Acquire(ctx context.Context, ownerKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, checkoutLockPrefix+ownerKey, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("set checkout lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the lock only while it still carries our token, so an expired lock
// re-acquired by another request is left alone.
func (r *RedisAdapter) Release(ctx context.Context, ownerKey, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{checkoutLockPrefix + ownerKey}, token).Err(); err != nil {
		return fmt.Errorf("release checkout lock: %w", err)
	}
	return nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
