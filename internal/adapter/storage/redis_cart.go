package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const sessionCartPrefix = "cart:session:"

var setQuantityScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

var mergeMaxScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local incoming = tonumber(ARGV[2])
if incoming > current then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCartStore keeps anonymous carts as one hash per session: field product id, value quantity.
// Every write refreshes the TTL.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func sessionKey(owner domain.Owner) (string, error) {
	if owner.Kind != domain.OwnerSession || owner.SessionID == "" {
		return "", ErrUnsupportedOwner
	}
	return sessionCartPrefix + owner.SessionID, nil
}

func (s *RedisCartStore) ttlSeconds() int64 {
	return int64(s.ttl / time.Second)
}

func (s *RedisCartStore) Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	key, err := sessionKey(owner)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, strconv.FormatInt(productID, 10), int64(quantity))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment session cart: %w", err)
	}
	return nil
}

func (s *RedisCartStore) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (bool, error) {
	key, err := sessionKey(owner)
	if err != nil {
		return false, err
	}

	n, err := setQuantityScript.Run(ctx, s.client, []string{key},
		strconv.FormatInt(productID, 10), quantity, s.ttlSeconds()).Int()
	if err != nil {
		return false, fmt.Errorf("set session cart quantity: %w", err)
	}
	return n == 1, nil
}

func (s *RedisCartStore) MergeMax(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	key, err := sessionKey(owner)
	if err != nil {
		return err
	}

	if err := mergeMaxScript.Run(ctx, s.client, []string{key},
		strconv.FormatInt(productID, 10), quantity, s.ttlSeconds()).Err(); err != nil {
		return fmt.Errorf("merge session cart line: %w", err)
	}
	return nil
}

func (s *RedisCartStore) Remove(ctx context.Context, owner domain.Owner, productID int64) error {
	key, err := sessionKey(owner)
	if err != nil {
		return err
	}
	return s.client.HDel(ctx, key, strconv.FormatInt(productID, 10)).Err()
}

func (s *RedisCartStore) Clear(ctx context.Context, owner domain.Owner) error {
	key, err := sessionKey(owner)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisCartStore) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	key, err := sessionKey(owner)
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read session cart: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(fields))
	for field, value := range fields {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.Atoi(value)
		if err != nil || quantity <= 0 {
			continue
		}
		lines = append(lines, domain.CartLine{Owner: owner, ProductID: productID, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}
