package cache

import (
	"fmt"
	"time"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

// New creates the cache for one namespace based on configuration.
// Memory caches are independent per namespace; Redis caches use one DB each.
func New(cfg domain.CacheConfig, namespace string) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryCache(namespace, cfg.LocalMaxSize, cfg.LocalTTL), nil

	case "redis":
		db, err := redisDB(cfg, namespace)
		if err != nil {
			return nil, err
		}
		return NewRedisCache(cfg, db, namespace)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Pair holds the two namespace caches used by the service.
type Pair struct {
	Deposits      domain.Cache
	InterestRates domain.Cache
}

// NewPair creates the deposit and interest-rate caches.
func NewPair(cfg domain.CacheConfig) (*Pair, error) {
	deposits, err := New(cfg, domain.NamespaceDeposits)
	if err != nil {
		return nil, fmt.Errorf("deposit cache: %w", err)
	}
	rates, err := New(cfg, domain.NamespaceInterestRates)
	if err != nil {
		_ = deposits.Close()
		return nil, fmt.Errorf("interest rate cache: %w", err)
	}
	return &Pair{Deposits: deposits, InterestRates: rates}, nil
}

// Close closes both caches.
func (p *Pair) Close() error {
	err1 := p.Deposits.Close()
	err2 := p.InterestRates.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func redisDB(cfg domain.CacheConfig, namespace string) (int, error) {
	switch namespace {
	case domain.NamespaceDeposits:
		return cfg.RedisDepositsDB, nil
	case domain.NamespaceInterestRates:
		return cfg.RedisInterestDB, nil
	default:
		return 0, fmt.Errorf("unknown cache namespace: %s", namespace)
	}
}

func dialTimeout(cfg domain.CacheConfig) time.Duration {
	if cfg.RedisDialTimeout > 0 {
		return cfg.RedisDialTimeout
	}
	return 5 * time.Second
}
