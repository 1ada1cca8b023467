// internal/tenant/conncache/cache_test.go
//
// Unit-tests for the per-workspace connection cache.
//
// Context
// -------
// The decrypter and connector are injected fakes that count invocations,
// so each test can assert the cache's central contract: zero decrypt and
// connect calls on a hit, exactly one of each on a miss.  Handles are
// sqlmock databases, which lets identity checks compare pointers without
// a live server.
//
// Run: go test ./internal/tenant/conncache -v

package conncache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// fakeDecrypter "decrypts" by stripping a ct: prefix, counting calls.
type fakeDecrypter struct {
	calls int
	fail  error
}

func (f *fakeDecrypter) Decrypt(ciphertext, workspaceID string) (string, error) {
	f.calls++
	if f.fail != nil {
		return "", f.fail
	}
	return strings.TrimPrefix(ciphertext, "ct:"), nil
}

// newHarness returns a cache whose connector hands out fresh sqlmock
// handles and counts connects.
func newHarness(t *testing.T, maxEntries int, ttl time.Duration) (*Cache, *fakeDecrypter, *int) {
	t.Helper()
	dec := &fakeDecrypter{}
	connects := 0
	connect := func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		connects++
		db, _, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock: %v", err)
		}
		return sqlx.NewDb(db, "sqlmock"), nil
	}
	c := New(dec, connect, maxEntries, ttl, zap.NewNop().Sugar())
	return c, dec, &connects
}

func TestGet_HitReturnsSameHandle(t *testing.T) {
	c, dec, connects := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	first, err := c.Get(ctx, "ws_a", "ct:dsn-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(ctx, "ws_a", "ct:dsn-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first != second {
		t.Fatal("hit returned a different handle")
	}
	if dec.calls != 1 || *connects != 1 {
		t.Fatalf("decrypt=%d connect=%d, want 1/1", dec.calls, *connects)
	}
}

func TestGet_RotationInvalidates(t *testing.T) {
	c, dec, connects := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	old, _ := c.Get(ctx, "ws_a", "ct:dsn-v1")
	renewed, err := c.Get(ctx, "ws_a", "ct:dsn-v2")
	if err != nil {
		t.Fatalf("Get after rotation: %v", err)
	}

	if old == renewed {
		t.Fatal("rotation returned the stale handle")
	}
	if dec.calls != 2 || *connects != 2 {
		t.Fatalf("decrypt=%d connect=%d, want 2/2", dec.calls, *connects)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (one entry per workspace)", c.Len())
	}
}

func TestGet_CapacityBound(t *testing.T) {
	c, _, _ := newHarness(t, 3, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"ws_1", "ws_2", "ws_3", "ws_4"} {
		if _, err := c.Get(ctx, id, "ct:"+id); err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
	}

	if c.Len() > 3 {
		t.Fatalf("Len = %d, exceeds capacity 3", c.Len())
	}
}

func TestGet_LRUVictimIsOldest(t *testing.T) {
	c, _, connects := newHarness(t, 2, time.Hour)
	ctx := context.Background()

	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Get(ctx, "ws_old", "ct:a")
	now = now.Add(time.Second)
	c.Get(ctx, "ws_new", "ct:b")
	now = now.Add(time.Second)
	c.Get(ctx, "ws_extra", "ct:c") // evicts ws_old

	before := *connects
	c.Get(ctx, "ws_new", "ct:b") // still cached
	if *connects != before {
		t.Fatal("ws_new was evicted; LRU chose the wrong victim")
	}
	c.Get(ctx, "ws_old", "ct:a") // must reconnect
	if *connects != before+1 {
		t.Fatal("ws_old survived eviction at capacity")
	}
}

func TestEvict_IdleSweepBeforeLRU(t *testing.T) {
	c, _, connects := newHarness(t, 2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Get(ctx, "ws_idle", "ct:a")
	now = now.Add(2 * time.Minute) // ws_idle is now past the TTL
	c.Get(ctx, "ws_warm", "ct:b")
	c.Get(ctx, "ws_next", "ct:c") // triggers eviction pass

	// The idle sweep must reclaim ws_idle so the warm entry survives even
	// though phase 2 would otherwise pick it by insertion order.
	before := *connects
	c.Get(ctx, "ws_warm", "ct:b")
	if *connects != before {
		t.Fatal("warm entry evicted although an idle one was available")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestGet_DecryptFailureInsertsNothing(t *testing.T) {
	c, dec, connects := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	dec.fail = errors.New("kms unavailable")
	if _, err := c.Get(ctx, "ws_a", "ct:x"); err == nil {
		t.Fatal("expected decrypt error")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after failed miss, want 0", c.Len())
	}
	if *connects != 0 {
		t.Fatal("connect called despite decrypt failure")
	}

	// Next call retries the miss path from scratch.
	dec.fail = nil
	if _, err := c.Get(ctx, "ws_a", "ct:x"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestGet_ConnectFailureInsertsNothing(t *testing.T) {
	dec := &fakeDecrypter{}
	connect := func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		return nil, errors.New("connection refused")
	}
	c := New(dec, connect, 10, time.Minute, zap.NewNop().Sugar())

	if _, err := c.Get(context.Background(), "ws_a", "ct:x"); err == nil {
		t.Fatal("expected connect error")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after failed connect, want 0", c.Len())
	}
}

func TestClearAndClearAll(t *testing.T) {
	c, _, connects := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	c.Get(ctx, "ws_a", "ct:a")
	c.Get(ctx, "ws_b", "ct:b")

	c.Clear("ws_a")
	if c.Len() != 1 {
		t.Fatalf("Len = %d after Clear, want 1", c.Len())
	}
	c.Clear("ws_ghost") // no-op

	before := *connects
	c.Get(ctx, "ws_a", "ct:a")
	if *connects != before+1 {
		t.Fatal("Clear did not drop the entry")
	}

	c.ClearAll()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after ClearAll, want 0", c.Len())
	}
}

func TestGet_EmptyArgs(t *testing.T) {
	c, _, _ := newHarness(t, 10, time.Minute)

	if _, err := c.Get(context.Background(), "", "ct:x"); !errors.Is(err, ErrBadKey) {
		t.Fatalf("err = %v, want ErrBadKey", err)
	}
	if _, err := c.Get(context.Background(), "ws_a", ""); !errors.Is(err, ErrBadKey) {
		t.Fatalf("err = %v, want ErrBadKey", err)
	}
}

func TestGet_ConcurrentSameWorkspace(t *testing.T) {
	c, _, _ := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	done := make(chan *sqlx.DB, 8)
	for i := 0; i < 8; i++ {
		go func() {
			db, err := c.Get(ctx, "ws_a", "ct:a")
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			done <- db
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// Duplicate misses may open extra handles, but exactly one entry may
	// remain resident.
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}
