// Package cache provides the key-value cache backends for the retirement calculator.
package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

const defaultMaxSize = 10000

var _ domain.Cache = (*MemoryCache)(nil)

// MemoryCache is an in-process Cache backed by an expirable LRU.
// Used for single-node deployments and tests.
type MemoryCache struct {
	namespace string
	maxSize   int
	lru       *expirable.LRU[string, string]
}

// NewMemoryCache creates a memory cache holding at most maxSize keys.
// A zero ttl keeps entries until they are evicted or deleted.
func NewMemoryCache(namespace string, maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &MemoryCache{
		namespace: namespace,
		maxSize:   maxSize,
		lru:       expirable.NewLRU[string, string](maxSize, nil, ttl),
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

// Set stores a value in the cache.
func (c *MemoryCache) Set(ctx context.Context, key string, value string) error {
	c.lru.Add(key, value)
	return nil
}

// Delete removes the given keys.
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

// Exists reports whether key is present without touching its recency.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	return c.lru.Contains(key), nil
}

// Keys lists keys matching a glob pattern, sorted. Matching follows Redis
// KEYS: "*" spans any characters including "/", "?" and "[...]" match one.
func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	all := c.lru.Keys()
	keys := make([]string, 0, len(all))

	if pattern == "" || pattern == "*" {
		keys = append(keys, all...)
		sort.Strings(keys)
		return keys, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, err)
	}
	for _, k := range all {
		if g.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// MGet returns the values of keys in order, nil for misses.
func (c *MemoryCache) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	values := make([]*string, len(keys))
	for i, k := range keys {
		if v, ok := c.lru.Peek(k); ok {
			values[i] = &v
		}
	}
	return values, nil
}

// Ping checks cache health.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// Namespace returns the namespace this cache serves.
func (c *MemoryCache) Namespace() string {
	return c.namespace
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() (size int, capacity int) {
	return c.lru.Len(), c.maxSize
}
