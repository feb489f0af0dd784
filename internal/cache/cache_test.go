package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMemoryCache(t *testing.T, maxKeys int) Cache {
	t.Helper()
	c := NewMemoryCache(&Config{
		TTL:             time.Minute,
		MaxKeys:         maxKeys,
		CleanupInterval: time.Hour,
	}, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestMemoryCache(t, 10)

	value := []byte(`{"tier":"first"}`)
	require.NoError(t, c.Set(ctx, "badges:pet:1", value, 0))
	value[0] = 'X'

	got, ok := c.Get(ctx, "badges:pet:1")
	require.True(t, ok)
	assert.Equal(t, `{"tier":"first"}`, string(got))

	require.NoError(t, c.Delete(ctx, "badges:pet:1", "missing"))
	_, ok = c.Get(ctx, "badges:pet:1")
	assert.False(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Provider)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Deletes)
	assert.InDelta(t, 0.5, stats.HitRatio, 0.001)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestMemoryCache(t, 10)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := newTestMemoryCache(t, 2)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	time.Sleep(2 * time.Millisecond)
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, okA := c.Get(ctx, "a")
	_, okB := c.Get(ctx, "b")
	_, okC := c.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Evicted)
	assert.Equal(t, int64(2), stats.Keys)
}

func TestMemoryCacheClose(t *testing.T) {
	c := NewMemoryCache(nil, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Health(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Set(context.Background(), "k", nil, 0), ErrClosed)
}

func TestNewCacheWithPrefix(t *testing.T) {
	ctx := context.Background()
	inner := newTestMemoryCache(t, 10)
	c := WithPrefix(inner, "petfolio:")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	_, ok := inner.Get(ctx, "petfolio:k")
	assert.True(t, ok)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = inner.Get(ctx, "petfolio:k")
	assert.False(t, ok)
}

func TestNewCacheProviders(t *testing.T) {
	c, err := NewCache(&Config{Provider: "memory", KeyPrefix: "p:"}, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Health(context.Background()))

	_, err = NewCache(&Config{Provider: "memcached"}, nil)
	assert.Error(t, err)
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(&Config{RedisURL: "redis://:secret@cache:6380/2", PoolSize: 5})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 5, opts.PoolSize)

	opts, err = redisOptions(&Config{RedisURL: "cache:6379", RedisDB: 1})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)
}
