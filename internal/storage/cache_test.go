package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltCache(t *testing.T) {
	store := setupTestStore(t)
	cache := store.QueryCache()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "q", []byte(`{"content":[]}`), time.Minute))
	require.NoError(t, cache.Set(ctx, "forever", []byte("x"), 0))

	got, ok, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"content":[]}`, string(got))

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires at its ttl")

	_, ok, err = cache.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := cache.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestBoltCachePurgeAdjacentEntries(t *testing.T) {
	store := setupTestStore(t)
	cache := store.QueryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, cache.Set(ctx, k, []byte(k), time.Second))
	}
	require.NoError(t, cache.Set(ctx, "e", []byte("e"), time.Hour))

	now = now.Add(time.Minute)
	removed, err := cache.Purge()
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	_, ok, err := cache.Get(ctx, "e")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBoltCacheClear(t *testing.T) {
	store := setupTestStore(t)
	cache := store.QueryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("a"), time.Hour))
	require.NoError(t, cache.Set(ctx, "b", []byte("b"), 0))
	require.NoError(t, cache.Clear(ctx))

	for _, k := range []string{"a", "b"} {
		_, ok, err := cache.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}

	require.NoError(t, cache.Set(ctx, "c", []byte("c"), time.Hour), "cache is usable after a clear")
	_, ok, err := cache.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCacheClear(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(mr.Addr(), "devportal:")
	defer cache.Close()
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("q%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, mr.Set("other:key", "kept"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, mr.Exists("devportal:q0"))
	assert.False(t, mr.Exists("devportal:q249"))
	assert.True(t, mr.Exists("other:key"), "keys outside the prefix are kept")

	unprefixed := NewRedisCache(mr.Addr(), "")
	defer unprefixed.Close()
	assert.ErrorIs(t, unprefixed.Clear(ctx), ErrNoPrefix)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(mr.Addr(), "devportal:")
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))

	_, ok, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "q", []byte("payload"), time.Minute))
	assert.True(t, mr.Exists("devportal:q"))

	got, ok, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(mr.Addr(), "")
	defer cache.Close()
	mr.Close()

	_, _, err := cache.Get(context.Background(), "q")
	assert.Error(t, err)
}
