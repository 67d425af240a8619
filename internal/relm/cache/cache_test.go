package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisWithClient(client, DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

// backends runs fn against every cache backend
func backends(t *testing.T, fn func(t *testing.T, c Cache)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("redis", func(t *testing.T) {
		c, _ := setupTestRedis(t)
		fn(t, c)
	})
}

func TestCache_SetGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "default:users", []byte("cols"), time.Minute))

		got, err := c.Get(ctx, "default:users")
		require.NoError(t, err)
		assert.Equal(t, []byte("cols"), got)

		require.NoError(t, c.Delete(ctx, "default:users"))
		_, err = c.Get(ctx, "default:users")
		assert.True(t, IsMiss(err))
	})
}

func TestCache_DeletePrefix(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "default:users", []byte("a"), 0))
		require.NoError(t, c.Set(ctx, "default:posts", []byte("b"), 0))
		require.NoError(t, c.Set(ctx, "other:users", []byte("c"), 0))

		require.NoError(t, c.DeletePrefix(ctx, "default:"))

		_, err := c.Get(ctx, "default:users")
		assert.True(t, IsMiss(err))
		_, err = c.Get(ctx, "default:posts")
		assert.True(t, IsMiss(err))
		got, err := c.Get(ctx, "other:users")
		require.NoError(t, err)
		assert.Equal(t, []byte("c"), got)
	})
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithConfig(Config{TTL: time.Minute})

	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), -1))

	now = now.Add(2 * time.Minute)

	_, err := m.Get(ctx, "k")
	assert.True(t, IsMiss(err))
	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	assert.ErrorIs(t, m.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedis_Expiry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestNewRedis_ConnectionError(t *testing.T) {
	_, err := NewRedis(context.Background(), "localhost:99999", "", 0, DefaultConfig())
	assert.Error(t, err)
}
