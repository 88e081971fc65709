package domain

import (
	"context"
	"time"
)

// Cache is a string-keyed, string-valued key-space.
// A deployment runs one instance per namespace (deposits, interest rates).
type Cache interface {
	// Get returns the value for key. A miss is found == false with a nil error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set upserts a value. No TTL is applied by callers.
	Set(ctx context.Context, key string, value string) error

	// Delete removes all given keys in one call. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists keys matching a glob pattern; "*" lists the whole namespace.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// MGet returns values in the order of keys, nil for absent keys.
	MGet(ctx context.Context, keys ...string) ([]*string, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Cache namespaces.
const (
	NamespaceDeposits      = "deposits"
	NamespaceInterestRates = "interest"
)

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `envconfig:"TYPE" default:"memory"`

	// Local cache settings
	LocalMaxSize int           `envconfig:"LOCAL_MAX_SIZE" default:"10000"`
	LocalTTL     time.Duration `envconfig:"LOCAL_TTL" default:"0s"`

	// Redis settings. Each namespace lives in its own logical database.
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDepositsDB   int           `envconfig:"REDIS_DEPOSITS_DB" default:"0"`
	RedisInterestDB   int           `envconfig:"REDIS_INTEREST_DB" default:"1"`
	RedisDialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	RedisWriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}
