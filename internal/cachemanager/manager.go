package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NoExpiration marks an entry that lives for the whole process.
const NoExpiration = gocache.NoExpiration

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// CacheManager caches values under string-like keys with per-entry TTLs.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
