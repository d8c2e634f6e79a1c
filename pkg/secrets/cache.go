package secrets

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long fetched secrets stay valid before the next Fetch
// goes back to the underlying store.
const DefaultCacheTTL = 5 * time.Minute

// Cache wraps a Store and serves repeated fetches of the same namespace from
// memory for a fixed TTL. A fetch failure after expiry is returned to the
// caller; the stale entry is not reused.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	values    map[string]string
	fetchedAt time.Time
}

// NewCache wraps a store with the default TTL.
func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Fetch(ctx context.Context, namespace string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[namespace]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.values, nil
	}

	values, err := c.store.Fetch(ctx, namespace)
	if err != nil {
		return nil, err
	}

	c.entries[namespace] = cacheEntry{values: values, fetchedAt: c.now()}

	return values, nil
}
