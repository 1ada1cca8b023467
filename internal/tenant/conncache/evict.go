// internal/tenant/conncache/evict.go
//
// Two-phase eviction for the connection cache.
//
// Phase 1 sweeps every entry and drops those idle longer than the TTL,
// regardless of capacity pressure.  Phase 2 runs only if the sweep left
// the cache at or above capacity, and removes the single least-recently
// used entry.  Reclaiming idle handles first means a warm entry that
// merely *looks* oldest by insertion order survives when a genuinely idle
// one can go instead.
//
// Eviction runs synchronously inside Get's insert path, so the bound
// holds after every insertion completes.  There is no background ticker:
// in a request-per-invocation deployment a timer goroutine may never run,
// so correctness cannot depend on one.
package conncache

import (
	"time"

	"github.com/quackback/quackback/internal/metrics"
)

// evictOldest must be called with c.mu held.
func (c *Cache) evictOldest(now time.Time) {
	// Phase 1: idle sweep.
	for id, ent := range c.entries {
		if now.Sub(ent.lastAccessed) > c.idleTTL {
			delete(c.entries, id)
			_ = ent.db.Close()
			metrics.ConnCacheEvictTotal.WithLabelValues("idle").Inc()
			metrics.ActiveTenantConns.Dec()
			c.log.Infow("tenant connection evicted", "workspace", id, "reason", "idle")
		}
	}

	// Phase 2: LRU, single entry.  Timestamp ties may pick any candidate.
	if len(c.entries) < c.maxEntries {
		return
	}
	var (
		victim string
		oldest time.Time
	)
	for id, ent := range c.entries {
		if victim == "" || ent.lastAccessed.Before(oldest) {
			victim, oldest = id, ent.lastAccessed
		}
	}
	if victim != "" {
		ent := c.entries[victim]
		delete(c.entries, victim)
		_ = ent.db.Close()
		metrics.ConnCacheEvictTotal.WithLabelValues("lru").Inc()
		metrics.ActiveTenantConns.Dec()
		c.log.Infow("tenant connection evicted", "workspace", victim, "reason", "lru")
	}
}
