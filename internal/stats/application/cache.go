package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	snapshotapp "receivables-cloud/internal/snapshot/application"
)

const (
	// SourceCache marks a value served from a fresh cache entry.
	SourceCache = "cache"
	// SourceComputed marks a value produced by an underlying computation.
	SourceComputed = "computed"
)

// TTLConfig sets per-scope freshness windows.
type TTLConfig struct {
	Global           time.Duration
	Representative   time.Duration
	RecentActivities time.Duration
}

// DefaultTTLs returns the standard freshness windows. Global aggregates
// are expensive, so their window stays short.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Global:           30 * time.Second,
		Representative:   30 * time.Second,
		RecentActivities: 10 * time.Second,
	}
}

// CachedValue is a cache read result with its provenance metadata.
type CachedValue struct {
	Value      any
	ComputedAt time.Time
	Source     string
}

type entry struct {
	value      any
	computedAt time.Time
	expiresAt  time.Time
}

type computed struct {
	value      any
	computedAt time.Time
}

// Cache is the process-wide statistics cache: scoped TTL entries, explicit
// invalidation, and single-flight de-duplication so concurrent callers for
// one missing or expired scope trigger at most one computation. Callers
// for different scopes never block each other. Computation errors reach
// every waiter on the in-flight key and are never cached.
type Cache struct {
	mu      sync.Mutex
	entries map[Scope]entry
	gens    map[Scope]uint64
	epoch   uint64
	group   singleflight.Group
	ttls    TTLConfig
	clock   snapshotapp.Clock
}

// NewCache constructs a statistics cache.
func NewCache(ttls TTLConfig, clock snapshotapp.Clock) *Cache {
	if clock == nil {
		clock = snapshotapp.SystemClock{}
	}
	return &Cache{
		entries: make(map[Scope]entry),
		gens:    make(map[Scope]uint64),
		ttls:    ttls,
		clock:   clock,
	}
}

// Get returns the cached value for the scope, computing it on miss or
// expiry. Concurrent callers for the same scope share one computation.
func (c *Cache) Get(ctx context.Context, scope Scope, compute func(ctx context.Context) (any, error)) (CachedValue, error) {
	now := c.clock.Now()

	c.mu.Lock()
	if cached, ok := c.entries[scope]; ok && now.Before(cached.expiresAt) {
		c.mu.Unlock()
		return CachedValue{Value: cached.value, ComputedAt: cached.computedAt, Source: SourceCache}, nil
	}
	gen := c.gens[scope]
	epoch := c.epoch
	c.mu.Unlock()

	key := flightKey(scope, epoch, gen)
	result, err, _ := c.group.Do(key, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		computedAt := c.clock.Now().UTC()

		c.mu.Lock()
		// An invalidation that raced this computation wins: don't
		// resurrect the entry under the old generation.
		if c.gens[scope] == gen && c.epoch == epoch {
			c.entries[scope] = entry{
				value:      value,
				computedAt: computedAt,
				expiresAt:  computedAt.Add(c.ttlFor(scope)),
			}
		}
		c.mu.Unlock()
		return computed{value: value, computedAt: computedAt}, nil
	})
	if err != nil {
		return CachedValue{}, err
	}
	done := result.(computed)
	return CachedValue{Value: done.value, ComputedAt: done.computedAt, Source: SourceComputed}, nil
}

// Invalidate drops the scope's entry immediately; the wildcard drops every
// entry. The next Get for an invalidated scope always recomputes, even
// when the dropped entry's TTL had not elapsed.
func (c *Cache) Invalidate(scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope == ScopeAll {
		c.entries = make(map[Scope]entry)
		c.epoch++
		return
	}
	delete(c.entries, scope)
	c.gens[scope]++
}

// Len reports the number of live entries, for metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) ttlFor(scope Scope) time.Duration {
	switch {
	case scope == ScopeGlobal:
		return c.ttls.Global
	case scope == ScopeRecentActivities:
		return c.ttls.RecentActivities
	case strings.HasPrefix(string(scope), representativePrefix):
		return c.ttls.Representative
	default:
		return c.ttls.Global
	}
}

func flightKey(scope Scope, epoch, gen uint64) string {
	return fmt.Sprintf("%s#%d#%d", scope, epoch, gen)
}
