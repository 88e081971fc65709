package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

const scanBatch = 100

// RedisCache implements Cache over one logical Redis database.
// Each namespace gets its own client bound to its own DB index.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache connects to the given Redis DB and verifies the connection.
func NewRedisCache(cfg domain.CacheConfig, db int, namespace string) (*RedisCache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           db,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg))
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis db %d: %w", db, err)
	}

	return &RedisCache{client: client, namespace: namespace}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.CacheUnavailable("get", err)
	}
	return val, true, nil
}

// Set stores a value in Redis without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value string) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return domain.CacheUnavailable("set", err)
	}
	return nil
}

// Delete removes all keys with a single DEL.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return domain.CacheUnavailable("delete", err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, domain.CacheUnavailable("exists", err)
	}
	return n > 0, nil
}

// Keys lists keys matching pattern using SCAN, sorted.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	seen := make(map[string]struct{})
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		seen[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, domain.CacheUnavailable("scan", err)
	}

	// SCAN may return a key more than once.
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// MGet returns the values of keys in order, nil for misses.
func (c *RedisCache) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return []*string{}, nil
	}

	raw, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.CacheUnavailable("mget", err)
	}

	values := make([]*string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			values[i] = &s
		}
	}
	return values, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return domain.CacheUnavailable("ping", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Namespace returns the namespace this cache serves.
func (c *RedisCache) Namespace() string {
	return c.namespace
}
