package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/config"
	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	rdb        redis.Cmdable
	namespace  string
	defaultTTL time.Duration
}

// NewRedisCache stores JSON documents in redis. The client is borrowed, so
// Close leaves it open.
func NewRedisCache(client redis.Cmdable, cfg *config.CacheConfig) Cache {
	return &redisCache{
		rdb:        client,
		namespace:  cfg.Namespace,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (c *redisCache) qualify(key string) string {
	if c.namespace == "" {
		return key
	}

	return c.namespace + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string, value any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.qualify(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, value); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	return true, nil
}

// Set writes value with the given ttl, or the configured default when ttl is
// not positive. Nothing is stored without an expiry.
func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.rdb.Set(ctx, c.qualify(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.qualify(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Close() error { return nil }
