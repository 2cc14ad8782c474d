// Package refcache caches slow-changing reference data (metric name
// listings, entity inventories) fetched from upstream APIs. Entries live in
// the shared Pebble database so they survive restarts, and a stale entry
// outlives a failed refresh: once the upstream API recovers, the next lookup
// refreshes in place instead of starting from nothing.
package refcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wavefrontHQ/newrelic/internal/misc"
	"github.com/wavefrontHQ/newrelic/internal/obs"
	"github.com/wavefrontHQ/newrelic/internal/ports"
	pebblestore "github.com/wavefrontHQ/newrelic/internal/storage/pebble"
)

// DefaultTTL matches how long upstream metric name listings stay useful.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "cache/"

// entry is the stored form of one cache slot.
type entry struct {
	FetchedAt time.Time `json:"fetched_at"`
	Payload   []byte    `json:"payload"`
}

// Cache is a TTL cache over the Pebble store with request coalescing.
type Cache struct {
	db    *pebblestore.DB
	log   *zap.Logger
	group singleflight.Group
	now   func() time.Time
}

var _ ports.RefCache = (*Cache)(nil)

// New returns a cache backed by db.
func New(db *pebblestore.DB, log *zap.Logger) *Cache {
	return &Cache{db: db, log: log, now: time.Now}
}

// GetOrFetch returns the cached payload for key when it is younger than
// ttl, otherwise calls fetch and stores the result. Concurrent callers for
// the same key share one fetch. A failed refresh propagates the fetch error
// and leaves the previous entry in place for the next attempt.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	dbKey := []byte(keyPrefix + misc.CacheKey(key))

	cached, ok, err := c.load(dbKey)
	if err != nil {
		return nil, fmt.Errorf("cache read %q: %w", key, err)
	}
	// An entry is fresh through the full TTL; stale only strictly after it.
	if ok && c.now().Sub(cached.FetchedAt) <= ttl {
		obs.CacheLookups.WithLabelValues("hit").Inc()
		return cached.Payload, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a peer may have refreshed already.
		cur, ok, err := c.load(dbKey)
		if err != nil {
			return nil, err
		}
		if ok && c.now().Sub(cur.FetchedAt) <= ttl {
			return cur.Payload, nil
		}

		payload, err := fetch(ctx)
		if err != nil {
			if ok {
				obs.CacheLookups.WithLabelValues("stale").Inc()
				c.log.Warn("refresh failed, keeping stale entry",
					zap.String("key", key),
					zap.Time("fetched_at", cur.FetchedAt),
					zap.Error(err))
			}
			return nil, err
		}

		if err := c.store(dbKey, payload); err != nil {
			return nil, err
		}
		obs.CacheLookups.WithLabelValues("miss").Inc()
		return payload, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache fetch %q: %w", key, err)
	}
	return v.([]byte), nil
}

// Invalidate drops the entry for key. Operator action only.
func (c *Cache) Invalidate(key string) error {
	return c.db.Delete([]byte(keyPrefix + misc.CacheKey(key)))
}

func (c *Cache) load(dbKey []byte) (entry, bool, error) {
	raw, ok, err := c.db.Get(dbKey)
	if err != nil || !ok {
		return entry{}, false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Unreadable entries behave like misses and get overwritten.
		return entry{}, false, nil
	}
	return e, true, nil
}

func (c *Cache) store(dbKey []byte, payload []byte) error {
	raw, err := json.Marshal(entry{FetchedAt: c.now(), Payload: payload})
	if err != nil {
		return err
	}
	return c.db.Set(dbKey, raw)
}
