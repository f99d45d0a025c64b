package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a cached snapshot stays fresh.
const DefaultTTL = 5 * time.Minute

// Source is the discovery dependency of a Cache. *Discoverer satisfies it;
// tests substitute stubs.
type Source interface {
	Discover(ctx context.Context, processID string) (*Snapshot, error)
}

// entry wraps a snapshot with the moment it was stored.
type entry struct {
	snapshot     *Snapshot
	discoveredAt time.Time
}

// Cache is a time-boxed in-memory store of discovery results keyed by
// process identity. It is an explicit object constructed with a TTL policy
// and handed to callers; there is no package-level shared instance.
//
// Concurrent GetOrDiscover calls for the same uncached identity are NOT
// coalesced: both perform discovery and both write the cache, last write
// wins. The duplicate round-trip is harmless and accepted.
type Cache struct {
	source Source
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the snapshot TTL. Non-positive values keep the default.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger used for cache diagnostics.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withClock replaces the time source. Tests use it to step past the TTL
// without sleeping.
func withClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache that fills misses through source.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:  source,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetOrDiscover returns the cached snapshot for processID when one exists
// and has not expired; otherwise it discovers, stores the new snapshot with
// a fresh timestamp, and returns it. force skips the cache lookup entirely.
// An expired entry is removed by the access that notices it.
func (c *Cache) GetOrDiscover(ctx context.Context, processID string, force bool) (*Snapshot, error) {
	if !force {
		if snap, ok := c.lookup(processID); ok {
			return snap, nil
		}
	}

	// Discovery happens outside the lock so one slow process cannot stall
	// lookups for every other identity.
	snap, err := c.source.Discover(ctx, processID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[processID] = entry{snapshot: snap, discoveredAt: c.now()}
	c.mu.Unlock()

	c.logger.Debug("cached capability snapshot", "process", processID, "handlers", len(snap.Handlers))
	return snap, nil
}

// lookup returns a fresh cached snapshot, evicting the entry when stale.
func (c *Cache) lookup(processID string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[processID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.discoveredAt) >= c.ttl {
		delete(c.entries, processID)
		return nil, false
	}
	return e.snapshot, true
}

// Invalidate drops the cached snapshot for processID, if any.
func (c *Cache) Invalidate(processID string) {
	c.mu.Lock()
	delete(c.entries, processID)
	c.mu.Unlock()
}

// Sweep proactively purges every expired entry and reports how many were
// removed. Lazy eviction in lookup makes this optional; it exists so a
// long-running host can keep the map from accumulating dead processes.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.discoveredAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
