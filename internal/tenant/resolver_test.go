// internal/tenant/resolver_test.go
//
// Unit-tests for host → tenant resolution.
//
// Context
// -------
// The catalog is a sqlmock database; the connection cache gets a fake
// decrypter plus a connector that hands out a second sqlmock seeded with
// the tenant-side settings row.  That covers the full composition path
// (catalog lookup → readiness gate → cache → concurrent context fetch)
// without any live Postgres.
//
// Run: go test ./internal/tenant -v

package tenant

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quackback/quackback/internal/catalog"
	"github.com/quackback/quackback/internal/tenant/conncache"
)

const baseDomain = "quackback.io"

type passthroughDecrypter struct{}

func (passthroughDecrypter) Decrypt(ciphertext, workspaceID string) (string, error) {
	return strings.TrimPrefix(ciphertext, "ct:"), nil
}

// harness bundles the resolver with its two mock databases.
type harness struct {
	resolver    *Resolver
	catalogMock sqlmock.Sqlmock
	tenantMock  sqlmock.Sqlmock
	connects    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	catDB, catMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { catDB.Close() })

	tenDB, tenMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { tenDB.Close() })

	h := &harness{catalogMock: catMock, tenantMock: tenMock}
	connect := func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		h.connects++
		return sqlx.NewDb(tenDB, "sqlmock"), nil
	}

	cache := conncache.New(passthroughDecrypter{}, connect, 10, time.Minute, zap.NewNop().Sugar())
	repo := catalog.New(sqlx.NewDb(catDB, "sqlmock"))
	h.resolver = NewResolver(repo, cache, baseDomain, zap.NewNop().Sugar())
	return h
}

func workspaceRow(status, dsn string) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "slug", "name", "migration_status", "encrypted_dsn", "created_at", "updated_at",
	})
	if dsn == "" {
		return rows.AddRow("ws_1", "acme", "Acme Inc", status, nil, now, now)
	}
	return rows.AddRow("ws_1", "acme", "Acme Inc", status, dsn, now, now)
}

func TestResolve_SlugHappyPath(t *testing.T) {
	h := newHarness(t)

	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRow("completed", "ct:postgres://acme"))
	h.catalogMock.ExpectQuery(`FROM\s+subscription`).
		WithArgs("ws_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"workspace_id", "tier", "status", "included_seats", "additional_seats", "current_period_end",
		}).AddRow("ws_1", "growth", "active", 5, 2, time.Now().Add(720*time.Hour)))
	h.tenantMock.ExpectQuery(`FROM\s+portal_settings`).
		WillReturnRows(sqlmock.NewRows([]string{
			"portal_name", "allow_public_signup", "require_approval", "default_locale",
		}).AddRow("Acme Feedback", true, false, "en"))

	req := httptest.NewRequest("GET", "http://acme.quackback.io:8443/", nil)
	info := h.resolver.ResolveFromDomain(context.Background(), req)
	if info == nil {
		t.Fatal("expected non-nil Info")
	}
	if info.WorkspaceID != "ws_1" || info.Slug != "acme" {
		t.Fatalf("unexpected identity: %+v", info)
	}
	if info.Settings == nil || info.Settings.PortalName != "Acme Feedback" {
		t.Fatalf("settings missing: %+v", info.Settings)
	}
	if info.Subscription == nil || info.Subscription.TotalSeats != 7 {
		t.Fatalf("subscription missing or wrong seats: %+v", info.Subscription)
	}
	if info.Subscription.PeriodEnd == nil {
		t.Fatal("period end missing")
	}
	if h.connects != 1 {
		t.Fatalf("connects = %d, want 1", h.connects)
	}
}

func TestResolve_ProvisioningFailsClosed(t *testing.T) {
	h := newHarness(t)

	// Retried resolutions must keep failing closed; negative caching does
	// not apply to a workspace that exists.
	for i := 0; i < 2; i++ {
		h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
			WithArgs("acme").
			WillReturnRows(workspaceRow("provisioning", "ct:x"))
	}

	req := httptest.NewRequest("GET", "http://acme.quackback.io/", nil)
	for i := 0; i < 2; i++ {
		if info := h.resolver.ResolveFromDomain(context.Background(), req); info != nil {
			t.Fatal("provisioning workspace yielded an Info")
		}
	}
	if h.connects != 0 {
		t.Fatal("connection opened for an unready workspace")
	}
}

func TestResolve_UnknownCustomDomainIsNegativelyCached(t *testing.T) {
	h := newHarness(t)

	// Exactly one catalog query for two resolutions: the second is served
	// by the 60-second negative cache.
	h.catalogMock.ExpectQuery(`workspace_domain`).
		WithArgs("feedback.customer.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "http://feedback.customer.com/", nil)
	for i := 0; i < 2; i++ {
		if info := h.resolver.ResolveFromDomain(context.Background(), req); info != nil {
			t.Fatal("unknown domain resolved")
		}
	}
	if err := h.catalogMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestResolve_MissingDSNIsNil(t *testing.T) {
	h := newHarness(t)

	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRow("completed", ""))

	req := httptest.NewRequest("GET", "http://acme.quackback.io/", nil)
	if info := h.resolver.ResolveFromDomain(context.Background(), req); info != nil {
		t.Fatal("workspace without DSN resolved")
	}
}

func TestResolve_MissingBaseDomainFailsClosed(t *testing.T) {
	h := newHarness(t)
	h.resolver.baseDomain = ""

	req := httptest.NewRequest("GET", "http://acme.quackback.io/", nil)
	if info := h.resolver.ResolveFromDomain(context.Background(), req); info != nil {
		t.Fatal("resolver served traffic without a base domain")
	}
}

func TestResolve_SubscriptionAbsenceIsValid(t *testing.T) {
	h := newHarness(t)

	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRow("completed", "ct:postgres://acme"))
	h.catalogMock.ExpectQuery(`FROM\s+subscription`).
		WithArgs("ws_1").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}))
	h.tenantMock.ExpectQuery(`FROM\s+portal_settings`).
		WillReturnRows(sqlmock.NewRows([]string{
			"portal_name", "allow_public_signup", "require_approval", "default_locale",
		}))

	req := httptest.NewRequest("GET", "http://acme.quackback.io/", nil)
	info := h.resolver.ResolveFromDomain(context.Background(), req)
	if info == nil {
		t.Fatal("resolution failed without a subscription row")
	}
	if info.Subscription != nil {
		t.Fatalf("expected nil subscription, got %+v", info.Subscription)
	}
	if info.Settings != nil {
		t.Fatalf("expected nil settings for empty row set, got %+v", info.Settings)
	}
}

func TestBySlug_Errors(t *testing.T) {
	h := newHarness(t)

	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRow("pending", "ct:x"))

	if _, _, err := h.resolver.BySlug(context.Background(), "ghost"); err == nil ||
		!strings.Contains(err.Error(), "ghost") {
		t.Fatalf("missing workspace: err = %v, want descriptive error", err)
	}

	_, _, err := h.resolver.BySlug(context.Background(), "acme")
	if err == nil || !strings.Contains(err.Error(), "pending") {
		t.Fatalf("unready workspace: err = %v, want status in message", err)
	}
}

func TestBySlug_HappyPath(t *testing.T) {
	h := newHarness(t)

	h.catalogMock.ExpectQuery(`FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRow("completed", "ct:postgres://acme"))

	db, wsID, err := h.resolver.BySlug(context.Background(), "acme")
	if err != nil {
		t.Fatalf("BySlug: %v", err)
	}
	if db == nil || wsID != "ws_1" {
		t.Fatalf("unexpected result: db=%v ws=%q", db, wsID)
	}
}
