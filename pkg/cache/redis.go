package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a [RedisCache].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, default "elk:".
	Prefix string
}

// RedisCache stores entries in Redis with SET ... EX.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "elk:"
	}
	return &RedisCache{client: rdb, prefix: prefix}, nil
}

// Get returns the value for key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set stores data; a ttl of 0 keeps the key until it is deleted.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := flush(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache   = (*RedisCache)(nil)
	_ Clearer = (*RedisCache)(nil)
)
