package tokenstore

import (
	"context"
	"sync"
	"time"
)

// L1 cache defaults: small and short-lived, an optimization only.
const (
	DefaultCacheTTL        = 2 * time.Minute
	DefaultCacheMaxEntries = 256
)

// CachedStore fronts a Store with a per-process cache. The cache is
// never the system of record: its contents may be absent or stale on
// any replica, so only reads are served from it, and an L1 hit still
// honors the record's absolute expiry. Consume and Delete always go to
// the shared store.
type CachedStore struct {
	inner Store

	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	rec     *Record
	staleAt time.Time
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with an L1 cache using the defaults.
func NewCachedStore(inner Store) *CachedStore {
	return &CachedStore{
		inner:      inner,
		entries:    make(map[string]cacheEntry),
		ttl:        DefaultCacheTTL,
		maxEntries: DefaultCacheMaxEntries,
		now:        time.Now,
	}
}

func cacheKey(kind Kind, value string) string {
	return string(kind) + ":" + value
}

func (c *CachedStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if err := c.inner.Put(ctx, rec, ttl); err != nil {
		return err
	}
	// Opportunistic warm; the write already succeeded in L2.
	c.store(rec)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, kind Kind, value string) (*Record, error) {
	if rec := c.lookup(kind, value); rec != nil {
		return rec, nil
	}

	rec, err := c.inner.Get(ctx, kind, value)
	if err != nil {
		return nil, err
	}
	c.store(rec)
	return rec, nil
}

func (c *CachedStore) Delete(ctx context.Context, kind Kind, value string) error {
	c.evict(kind, value)
	return c.inner.Delete(ctx, kind, value)
}

func (c *CachedStore) Consume(ctx context.Context, kind Kind, value string) (*Record, error) {
	// One-time-use semantics live in the shared store, never in L1.
	c.evict(kind, value)
	return c.inner.Consume(ctx, kind, value)
}

func (c *CachedStore) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

func (c *CachedStore) lookup(kind Kind, value string) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(kind, value)
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	now := c.now()
	if now.After(entry.staleAt) || entry.rec.Expired(now) {
		delete(c.entries, key)
		return nil
	}
	return entry.rec.clone()
}

func (c *CachedStore) store(rec *Record) {
	if rec == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		// Drop an arbitrary entry rather than growing without bound.
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[cacheKey(rec.Kind, rec.Value)] = cacheEntry{
		rec:     rec.clone(),
		staleAt: c.now().Add(c.ttl),
	}
}

func (c *CachedStore) evict(kind Kind, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(kind, value))
}
