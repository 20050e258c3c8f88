package rates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched snapshot stays fresh.
const DefaultTTL = 24 * time.Hour

// Cache holds the current rate snapshot and refreshes it from the
// provider when it expires. It is an explicit instance, not a process
// global; everything that needs rates holds a reference.
//
// Concurrent callers hitting an expired cache share a single in-flight
// fetch. A failed refresh never surfaces to callers: the previous
// snapshot is served stale, or the static fallback table when nothing was
// ever fetched.
type Cache struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot

	group singleflight.Group
}

// NewCache creates a rate cache over the given provider. A zero ttl means
// DefaultTTL.
func NewCache(provider Provider, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{provider: provider, ttl: ttl, logger: logger}
}

// GetRates returns the snapshot valid at now. It never fails: degraded
// snapshots carry SourceStale or SourceFallback so callers and logs can
// tell them apart from fresh data.
func (c *Cache) GetRates(ctx context.Context, now time.Time) Snapshot {
	if snap, ok := c.current(now); ok {
		return snap
	}

	v, _, _ := c.group.Do("rates", func() (any, error) {
		// A waiter queued behind a finished fetch re-checks before
		// fetching again.
		if snap, ok := c.current(now); ok {
			return snap, nil
		}

		fetched, err := c.provider.FetchRates(ctx)
		if err != nil {
			return c.degrade(now, err), nil
		}

		snap := Snapshot{Rates: fetched, FetchedAt: now, Source: SourceProvider}
		c.mu.Lock()
		c.snapshot = &snap
		c.mu.Unlock()
		c.logger.Info("exchange rates refreshed", "count", len(fetched))
		return snap, nil
	})
	return v.(Snapshot)
}

// current returns the cached snapshot if it is still fresh.
func (c *Cache) current(now time.Time) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot != nil && now.Sub(c.snapshot.FetchedAt) < c.ttl {
		return *c.snapshot, true
	}
	return Snapshot{}, false
}

// degrade picks the recovery snapshot after a failed fetch. The cached
// snapshot is left unchanged so the next expiry retries the provider.
func (c *Cache) degrade(now time.Time, fetchErr error) Snapshot {
	c.mu.RLock()
	prev := c.snapshot
	c.mu.RUnlock()

	if prev != nil {
		c.logger.Warn("rate fetch failed, serving stale snapshot",
			"error", fetchErr,
			"fetched_at", prev.FetchedAt,
			"age", now.Sub(prev.FetchedAt).String())
		stale := *prev
		stale.Source = SourceStale
		return stale
	}

	c.logger.Warn("rate fetch failed with no prior snapshot, serving fallback table",
		"error", fetchErr)
	return FallbackSnapshot(now)
}
