// Package cache stores computed layouts and rendered artifacts.
//
// All backends implement [Cache], a byte-oriented key/value store with a
// per-entry TTL:
//
//   - [FileCache]: sharded JSON files on local disk (CLI default)
//   - [RedisCache]: a shared Redis server
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: stores nothing (--no-cache)
//
// Keys come from a [Keyer] so every backend sees the same key layout:
//
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.LayoutKey(graphHash, cache.LayoutKeyOpts{ServerVersion: "0.2.0"})
//	data, ok, err := c.Get(ctx, key)
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for serialized layout data.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of 0 passed to Set means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// NullCache stores nothing. Every Get misses and every Set succeeds, which
// lets callers skip nil checks when caching is switched off.
type NullCache struct{}

// NewNullCache returns a NullCache.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }
