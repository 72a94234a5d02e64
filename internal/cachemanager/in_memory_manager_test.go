package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_GetSet(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	_, found := cache.Get(ctx, "missing")
	require.False(t, found)

	cache.Set(ctx, "key", "value", NoExpiration)
	got, found := cache.Get(ctx, "key")
	require.True(t, found)
	require.Equal(t, "value", got)
}

func TestInMemoryCacheManager_Expiration(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	cache.Set(ctx, "key", 42, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, found := cache.Get(ctx, "key")
	require.False(t, found)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	cache.Set(ctx, "one", "1", NoExpiration)
	cache.Set(ctx, "two", "2", NoExpiration)

	require.NoError(t, cache.Delete(ctx, "one"))
	_, found := cache.Get(ctx, "one")
	require.False(t, found)
	_, found = cache.Get(ctx, "two")
	require.True(t, found)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	cache.Set(ctx, "one", "1", NoExpiration)
	require.NoError(t, cache.Flush(ctx))

	_, found := cache.Get(ctx, "one")
	require.False(t, found)
}
