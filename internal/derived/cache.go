// Package derived caches the per-customer filtered documents. Entries are
// always recomputable from a snapshot and a selection, so the cache is
// advisory: every entry expires after a fixed TTL even if an invalidation
// is missed.
package derived

import (
	"context"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// DefaultTTL bounds how long a derived document can be served.
const DefaultTTL = time.Hour

// Key returns the cache key of the (customer, feed) pair.
func Key(customerToken string, feedID int64) string {
	return fmt.Sprintf("customer:%s:feed:%d", customerToken, feedID)
}

// Cache stores derived documents in a KV backend.
type Cache struct {
	kv  KV
	ttl time.Duration
}

// NewCache creates a cache over kv. A non-positive ttl uses DefaultTTL.
func NewCache(kv KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

// TTL returns the lifetime given to new entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached document for the pair, if any.
func (c *Cache) Get(ctx context.Context, customerToken string, feedID int64) ([]byte, bool, error) {
	doc, ok, err := c.kv.Get(ctx, Key(customerToken, feedID))
	if err != nil {
		return nil, false, fmt.Errorf("derived cache get: %w", err)
	}
	if ok {
		metrics.GetOrCreateCounter(`derived_cache_requests_total{result="hit"}`).Inc()
	} else {
		metrics.GetOrCreateCounter(`derived_cache_requests_total{result="miss"}`).Inc()
	}
	return doc, ok, nil
}

// Put stores doc for the pair with the cache TTL.
func (c *Cache) Put(ctx context.Context, customerToken string, feedID int64, doc []byte) error {
	if err := c.kv.Set(ctx, Key(customerToken, feedID), doc, c.ttl); err != nil {
		return fmt.Errorf("derived cache put: %w", err)
	}
	return nil
}

// Delete evicts the pair. Evicting an absent entry is a no-op.
func (c *Cache) Delete(ctx context.Context, customerToken string, feedID int64) error {
	if err := c.kv.Delete(ctx, Key(customerToken, feedID)); err != nil {
		return fmt.Errorf("derived cache delete: %w", err)
	}
	metrics.GetOrCreateCounter("derived_cache_evictions_total").Inc()
	return nil
}
