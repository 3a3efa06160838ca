package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func getRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestCheckoutLock_AcquireRelease(t *testing.T) {
	client, mr := getRedisClient(t)
	adapter := NewRedisAdapter(client)
	ctx := context.Background()

	token, ok, err := adapter.Acquire(ctx, "user:7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, time.Minute, mr.TTL("checkout:lock:user:7"))

	_, ok, err = adapter.Acquire(ctx, "user:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, adapter.Release(ctx, "user:7", token))
	assert.False(t, mr.Exists("checkout:lock:user:7"))
}

func TestCheckoutLock_ReleaseIgnoresForeignToken(t *testing.T) {
	client, mr := getRedisClient(t)
	adapter := NewRedisAdapter(client)
	ctx := context.Background()

	_, ok, err := adapter.Acquire(ctx, "session:abc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.Release(ctx, "session:abc", "stale-token"))
	assert.True(t, mr.Exists("checkout:lock:session:abc"))
}

func TestCheckoutLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := getRedisClient(t)
	adapter := NewRedisAdapter(client)
	ctx := context.Background()

	_, ok, _ := adapter.Acquire(ctx, "user:1", 5*time.Second)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	_, ok, err := adapter.Acquire(ctx, "user:1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckoutLock_Concurrent(t *testing.T) {
	client, _ := getRedisClient(t)
	adapter := NewRedisAdapter(client)
	ctx := context.Background()

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := adapter.Acquire(ctx, "user:9", time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestSessionCart_AddSumsAndRefreshesTTL(t *testing.T) {
	client, mr := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	owner := domain.SessionOwner("abc")

	require.NoError(t, store.Add(ctx, owner, 1, 2))
	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.Add(ctx, owner, 1, 3))

	assert.Equal(t, "5", mr.HGet("cart:session:abc", "1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:session:abc"))
}

func TestSessionCart_SetQuantity(t *testing.T) {
	client, mr := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	owner := domain.SessionOwner("abc")
	require.NoError(t, store.Add(ctx, owner, 1, 2))

	ok, err := store.SetQuantity(ctx, owner, 1, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", mr.HGet("cart:session:abc", "1"))

	ok, err = store.SetQuantity(ctx, owner, 2, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", mr.HGet("cart:session:abc", "2"))
}

func TestSessionCart_MergeMax(t *testing.T) {
	client, mr := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	owner := domain.SessionOwner("abc")
	require.NoError(t, store.Add(ctx, owner, 1, 3))

	require.NoError(t, store.MergeMax(ctx, owner, 1, 2))
	require.NoError(t, store.MergeMax(ctx, owner, 2, 4))

	assert.Equal(t, "3", mr.HGet("cart:session:abc", "1"))
	assert.Equal(t, "4", mr.HGet("cart:session:abc", "2"))
}

func TestSessionCart_LinesRemoveClear(t *testing.T) {
	client, _ := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	owner := domain.SessionOwner("abc")

	require.NoError(t, store.Add(ctx, owner, 3, 1))
	require.NoError(t, store.Add(ctx, owner, 1, 2))

	lines, err := store.Lines(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)

	require.NoError(t, store.Remove(ctx, owner, 1))
	require.NoError(t, store.Remove(ctx, owner, 1))
	lines, _ = store.Lines(ctx, owner)
	assert.Len(t, lines, 1)

	require.NoError(t, store.Clear(ctx, owner))
	lines, err = store.Lines(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSessionCart_ExpiresWithSession(t *testing.T) {
	client, mr := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	owner := domain.SessionOwner("abc")
	require.NoError(t, store.Add(ctx, owner, 1, 1))

	mr.FastForward(2 * time.Hour)

	lines, err := store.Lines(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSessionCart_RejectsUserOwner(t *testing.T) {
	client, _ := getRedisClient(t)
	store := NewRedisCartStore(client, time.Hour)

	_, err := store.Lines(context.Background(), domain.UserOwner(1))
	assert.ErrorIs(t, err, ErrUnsupportedOwner)
}
