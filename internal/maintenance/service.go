// Package maintenance keeps the lifestyle caches consistent with the backing store.
//
// Keys passed to the Service are expected to be normalized by the caller.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/metrics"
)

// Summary messages returned by RefreshAll.
const (
	MsgNoRecords      = "No LifestyleDeposit records found in the database."
	MsgRefreshedAll   = "Cache successfully refreshed for all LifestyleDeposit entries."
	msgNotInitialized = "Cache is NOT initialized (no Redis connection or fallback cache)."
	msgFallback       = "Cache is initialized (non-Redis), but size is unknown."
)

// Entry suffixes used by FetchAll to flatten both namespaces into one map.
const (
	SuffixDeposit  = ":deposit"
	SuffixInterest = ":interest"
)

// Service implements the cache maintenance operations.
type Service struct {
	deposits domain.Cache
	rates    domain.Cache
	store    domain.DepositStore
	bus      domain.EventBus
}

// NewService creates a maintenance service. rates and bus may be nil.
func NewService(deposits, rates domain.Cache, store domain.DepositStore, bus domain.EventBus) *Service {
	return &Service{
		deposits: deposits,
		rates:    rates,
		store:    store,
		bus:      bus,
	}
}

// StatusState classifies the outcome of a status probe.
type StatusState int

const (
	StatusUp StatusState = iota
	StatusNotInitialized
	StatusFallback
	StatusDown
)

// Status is the result of probing the deposit cache for one key.
type Status struct {
	Key    string
	State  StatusState
	Exists bool
	Size   int
	Err    error
}

// String renders the status as a human-readable line.
func (s Status) String() string {
	switch s.State {
	case StatusNotInitialized:
		return msgNotInitialized
	case StatusFallback:
		return msgFallback
	case StatusDown:
		return "Error: cache connection failure - " + errMessage(s.Err)
	}

	presence := " does NOT exist"
	if s.Exists {
		presence = " exists"
	}
	return "Cache is UP | Cache key " + s.Key + presence + " | Approximate size: " + strconv.Itoa(s.Size)
}

// Status probes cache liveness and reports presence and size of key. It never fails;
// connectivity problems are reported in the returned Status.
func (s *Service) Status(ctx context.Context, key string) Status {
	st := Status{Key: key}
	if s.deposits == nil {
		return s.fallbackStatus(ctx, st)
	}

	if err := s.deposits.Ping(ctx); err != nil {
		return s.down(st, err)
	}

	exists, err := s.deposits.Exists(ctx, key)
	if err != nil {
		return s.down(st, err)
	}
	st.Exists = exists
	if exists {
		value, _, err := s.deposits.Get(ctx, key)
		if err != nil {
			return s.down(st, err)
		}
		st.Size = len(value)
	}

	metrics.CacheOperationsTotal.WithLabelValues("status", "ok").Inc()
	return st
}

// fallbackStatus reports on the interest namespace when no deposit cache is configured.
func (s *Service) fallbackStatus(ctx context.Context, st Status) Status {
	if s.rates == nil {
		st.State = StatusNotInitialized
		return st
	}
	if err := s.rates.Ping(ctx); err != nil {
		return s.down(st, err)
	}
	st.State = StatusFallback
	metrics.CacheOperationsTotal.WithLabelValues("status", "ok").Inc()
	return st
}

func (s *Service) down(st Status, err error) Status {
	slog.Warn("cache status probe failed", "key", st.Key, "error", err)
	metrics.CacheOperationsTotal.WithLabelValues("status", metrics.Outcome(err)).Inc()
	st.State = StatusDown
	st.Err = err
	return st
}

// Refresh evicts key, reloads it from the store and writes the encoded record back.
// When the store has no record the entry stays evicted and a LifestyleNotFound error is returned.
func (s *Service) Refresh(ctx context.Context, key string) (value string, err error) {
	defer func() { metrics.CacheOperationsTotal.WithLabelValues("refresh", metrics.Outcome(err)).Inc() }()

	if err := s.deposits.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("evict %q: %w", key, err)
	}

	dep, err := s.store.FindByLifestyleType(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Warn("refresh found no record", "key", key)
		return "", domain.LifestyleNotFound(key)
	}
	if err != nil {
		return "", fmt.Errorf("load %q: %w", key, err)
	}

	value = domain.EncodeDeposit(dep)
	if err := s.deposits.Set(ctx, key, value); err != nil {
		return "", fmt.Errorf("store %q: %w", key, err)
	}

	slog.Info("cache refreshed", "key", key, "value", value)
	s.publishRefreshed(ctx, domain.CacheRefreshedEvent{Keys: []string{key}, Loaded: 1})
	return value, nil
}

// RefreshSummary describes the outcome of RefreshAll.
type RefreshSummary struct {
	Deleted int
	Loaded  int
	Message string
}

// RefreshAll clears the deposit namespace in one batch and repopulates it from the store.
// Concurrent calls may interleave; the cache is transiently empty between the two phases.
func (s *Service) RefreshAll(ctx context.Context) (summary RefreshSummary, err error) {
	defer func() { metrics.CacheOperationsTotal.WithLabelValues("refresh_all", metrics.Outcome(err)).Inc() }()

	keys, err := s.deposits.Keys(ctx, "*")
	if err != nil {
		return summary, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) > 0 {
		if err := s.deposits.Delete(ctx, keys...); err != nil {
			return summary, fmt.Errorf("evict %d keys: %w", len(keys), err)
		}
	}
	summary.Deleted = len(keys)

	all, err := s.store.FindAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("load deposits: %w", err)
	}
	if len(all) == 0 {
		summary.Message = MsgNoRecords
		slog.Info("cache cleared, store is empty", "deleted", summary.Deleted)
		return summary, nil
	}

	loaded := make([]string, 0, len(all))
	for _, dep := range all {
		key := domain.NormalizeKey(dep.LifestyleType)
		if err := s.deposits.Set(ctx, key, domain.EncodeDeposit(dep)); err != nil {
			return summary, fmt.Errorf("store %q: %w", key, err)
		}
		loaded = append(loaded, key)
		summary.Loaded++
	}
	summary.Message = MsgRefreshedAll

	slog.Info("cache refreshed from store", "deleted", summary.Deleted, "loaded", summary.Loaded)
	s.publishRefreshed(ctx, domain.CacheRefreshedEvent{Keys: loaded, All: true, Loaded: summary.Loaded})
	return summary, nil
}

// Fetch reads key from the deposit namespace. A miss is not an error.
func (s *Service) Fetch(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.deposits.Get(ctx, key)
	metrics.CacheOperationsTotal.WithLabelValues("fetch", metrics.Outcome(err)).Inc()
	if err != nil {
		return "", false, fmt.Errorf("fetch %q: %w", key, err)
	}
	if !found {
		slog.Warn("no data found in cache", "key", key)
		return "", false, nil
	}
	slog.Debug("found data in cache", "key", key, "value", value)
	return value, true, nil
}

// FetchAll returns every deposit-namespace key with its values from both namespaces,
// as "key:deposit" and "key:interest" entries. Absent values are omitted.
func (s *Service) FetchAll(ctx context.Context) (entries map[string]string, err error) {
	defer func() { metrics.CacheOperationsTotal.WithLabelValues("fetch_all", metrics.Outcome(err)).Inc() }()

	entries = make(map[string]string)

	keys, err := s.deposits.Keys(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		return entries, nil
	}

	deposits, err := s.deposits.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read deposits: %w", err)
	}
	addEntries(entries, keys, deposits, SuffixDeposit)

	if s.rates != nil {
		rates, err := s.rates.MGet(ctx, keys...)
		if err != nil {
			return nil, fmt.Errorf("read interest rates: %w", err)
		}
		addEntries(entries, keys, rates, SuffixInterest)
	}
	return entries, nil
}

func addEntries(dst map[string]string, keys []string, values []*string, suffix string) {
	for i, key := range keys {
		if i < len(values) && values[i] != nil {
			dst[key+suffix] = *values[i]
		}
	}
}

// Update writes value under key, bypassing the store.
func (s *Service) Update(ctx context.Context, key, value string) error {
	err := s.deposits.Set(ctx, key, value)
	metrics.CacheOperationsTotal.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("update %q: %w", key, err)
	}
	slog.Info("cache updated", "key", key)
	return nil
}

// Delete evicts key. Deleting an absent key succeeds.
func (s *Service) Delete(ctx context.Context, key string) error {
	err := s.deposits.Delete(ctx, key)
	metrics.CacheOperationsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	slog.Info("cache entry deleted", "key", key)
	return nil
}

func (s *Service) publishRefreshed(ctx context.Context, event domain.CacheRefreshedEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode cache event", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.TopicCacheRefreshed, payload); err != nil {
		slog.Warn("failed to publish cache event", "error", err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
