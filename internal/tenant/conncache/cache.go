// internal/tenant/conncache/cache.go
//
// Per-workspace database connection cache.
//
// Context
// -------
// Every resolved request needs a live handle on its workspace's dedicated
// database.  Opening one costs a Vault-derived decryption plus a TCP/TLS
// connect, so handles are cached process-wide and shared across concurrent
// requests.  Entries are keyed by workspace id and fingerprinted with the
// *ciphertext* of the DSN: a hit compares ciphertext bytes and never
// touches the decrypter, while credential rotation changes the ciphertext
// and transparently forces a reconnect on the next Get.
//
// The cache is a soft optimisation, not a resource limiter.  Two
// concurrent misses for the same workspace may both decrypt and connect;
// the second insert overwrites the first and the displaced handle is
// closed.  That duplicate work is rare and harmless, so there is no
// per-key coalescing.
//
// Notes
// -----
//   - Construct once at boot and inject; no package-level singleton.
//   - Decrypt and connect run outside the lock.  Only map surgery holds it.
//   - Oxford commas, two spaces after periods.
package conncache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quackback/quackback/internal/metrics"
)

// Static defaults.  Override via the cache section of conf/global.yaml.
const (
	DefaultMaxConnections = 100
	DefaultIdleTTL        = 5 * time.Minute
)

// ErrBadKey is returned when Get is called with an empty workspace id or
// ciphertext.  It indicates a caller bug, never a tenant state.
var ErrBadKey = errors.New("conncache: workspace id and encrypted DSN must be non-empty")

// Decrypter turns a stored ciphertext back into a plaintext DSN.  The
// workspace id is cryptographic context: a ciphertext moved to another
// workspace must fail to decrypt.
type Decrypter interface {
	Decrypt(ciphertext, workspaceID string) (string, error)
}

// Connector opens a handle for a plaintext DSN.  Implementations should
// ping before returning so a broken DSN surfaces here, not on first query.
type Connector func(ctx context.Context, dsn string) (*sqlx.DB, error)

type entry struct {
	db           *sqlx.DB
	fingerprint  string // exact ciphertext the handle was built from
	lastAccessed time.Time
}

// Cache maps workspace id → live handle, bounded by entry count and idle
// TTL.  Safe for concurrent use.
type Cache struct {
	decrypt    Decrypter
	connect    Connector
	maxEntries int
	idleTTL    time.Duration
	log        *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]*entry

	nowFn func() time.Time // test seam
}

// New constructs a Cache.  Non-positive maxEntries or idleTTL fall back to
// the package defaults.
func New(dec Decrypter, connect Connector, maxEntries int, idleTTL time.Duration, log *zap.SugaredLogger) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxConnections
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Cache{
		decrypt:    dec,
		connect:    connect,
		maxEntries: maxEntries,
		idleTTL:    idleTTL,
		log:        log,
		entries:    make(map[string]*entry, maxEntries),
		nowFn:      time.Now,
	}
}

// Get returns the cached handle for workspaceID, building one on demand.
// A hit costs a map lookup and a byte comparison; a miss costs exactly one
// decrypt and one connect.  Failures insert nothing, so the next call
// retries from scratch.
func (c *Cache) Get(ctx context.Context, workspaceID, encryptedDSN string) (*sqlx.DB, error) {
	if workspaceID == "" || encryptedDSN == "" {
		return nil, ErrBadKey
	}

	c.mu.Lock()
	if ent, ok := c.entries[workspaceID]; ok {
		if ent.fingerprint == encryptedDSN {
			ent.lastAccessed = c.nowFn()
			db := ent.db
			c.mu.Unlock()
			metrics.ConnCacheHitsTotal.Inc()
			return db, nil
		}
		// Credential rotation: the stored ciphertext is stale.  Drop the
		// entry and fall through to the miss path.
		delete(c.entries, workspaceID)
		stale := ent.db
		c.mu.Unlock()
		_ = stale.Close()
		metrics.ConnCacheEvictTotal.WithLabelValues("rotation").Inc()
		metrics.ActiveTenantConns.Dec()
		c.log.Infow("tenant credentials rotated, reconnecting", "workspace", workspaceID)
	} else {
		c.mu.Unlock()
	}

	metrics.ConnCacheMissesTotal.Inc()

	dsn, err := c.decrypt.Decrypt(encryptedDSN, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("conncache: decrypt DSN for %s: %w", workspaceID, err)
	}
	db, err := c.connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("conncache: connect %s: %w", workspaceID, err)
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldest(c.nowFn())
	}
	var displaced *sqlx.DB
	if prev, ok := c.entries[workspaceID]; ok {
		// Lost a duplicate-miss race; the later handle wins.
		displaced = prev.db
	} else {
		metrics.ActiveTenantConns.Inc()
	}
	c.entries[workspaceID] = &entry{
		db:           db,
		fingerprint:  encryptedDSN,
		lastAccessed: c.nowFn(),
	}
	c.mu.Unlock()

	if displaced != nil {
		_ = displaced.Close()
	}
	return db, nil
}

// Clear removes one workspace's entry if present.  Used when a caller
// learns out-of-band that credentials changed.
func (c *Cache) Clear(workspaceID string) {
	c.mu.Lock()
	ent, ok := c.entries[workspaceID]
	if ok {
		delete(c.entries, workspaceID)
	}
	c.mu.Unlock()

	if ok {
		_ = ent.db.Close()
		metrics.ConnCacheEvictTotal.WithLabelValues("clear").Inc()
		metrics.ActiveTenantConns.Dec()
	}
}

// ClearAll empties the cache, closing every handle.  Used at shutdown and
// by tests.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*entry, c.maxEntries)
	c.mu.Unlock()

	for _, ent := range old {
		_ = ent.db.Close()
		metrics.ConnCacheEvictTotal.WithLabelValues("clear").Inc()
		metrics.ActiveTenantConns.Dec()
	}
}

// Len reports current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
