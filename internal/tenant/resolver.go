// internal/tenant/resolver.go
//
// Host → workspace resolution.
//
/*
Context
--------
The Resolver is the error boundary between anonymous HTTP traffic and the
tenancy core.  `ResolveFromDomain` degrades every failure — unknown host,
workspace still provisioning, catalog outage, decrypt or connect failure,
even a programming panic — to a nil Info.  An anonymous request learns
nothing beyond "no such workspace"; operators get the detail from the log.

`BySlug` is the opposite contract for trusted internal callers (backfill
jobs, the tenantctl CLI): it skips host parsing and raises descriptive
errors, because an operator running a script wants "workspace acme is
still provisioning", not a silent nil.

Workflow
--------
  host → decideLookup → catalog finder → readiness gate → connection
  cache → concurrent settings + subscription fetch → Info.

The settings and subscription fetches are independent reads of two
different databases and run concurrently; their failures downgrade to nil
fields rather than failing the resolution.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quackback/quackback/internal/catalog"
	"github.com/quackback/quackback/internal/metrics"
	"github.com/quackback/quackback/internal/tenant/conncache"
)

// ErrNotReady is returned by BySlug when the workspace exists but its
// migration has not completed.
var ErrNotReady = errors.New("tenant: workspace is not ready for traffic")

// Resolver maps inbound hosts to tenant contexts.
type Resolver struct {
	catalog    *catalog.Repository
	cache      *conncache.Cache
	baseDomain string
	log        *zap.SugaredLogger
	neg        *negCache
}

// NewResolver wires the resolver's collaborators.  baseDomain may be
// empty, in which case every public resolution fails closed.
func NewResolver(cat *catalog.Repository, cache *conncache.Cache, baseDomain string, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		catalog:    cat,
		cache:      cache,
		baseDomain: baseDomain,
		log:        log,
		neg:        newNegCache(),
	}
}

// ResolveFromDomain resolves the request's Host header to a tenant
// context, or nil when no tenant applies.  It never returns an error and
// never panics through to the caller.
func (r *Resolver) ResolveFromDomain(ctx context.Context, req *http.Request) (info *Info) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("tenant resolution panicked", "host", req.Host, "panic", rec)
			metrics.ResolveTotal.WithLabelValues("error").Inc()
			info = nil
		}
	}()

	if r.baseDomain == "" {
		// Misconfiguration, not a per-request condition.  Fail closed.
		r.log.Errorw("tenancy.base_domain is not configured; refusing all tenant traffic")
		metrics.ResolveTotal.WithLabelValues("error").Inc()
		return nil
	}

	host := strings.ToLower(stripPort(req.Host))
	if host == "" {
		metrics.ResolveTotal.WithLabelValues("not_found").Inc()
		return nil
	}
	if r.neg.hit(host, time.Now()) {
		metrics.ResolveTotal.WithLabelValues("not_found").Inc()
		return nil
	}

	var (
		ws  *catalog.Workspace
		err error
	)
	switch lk := decideLookup(host, r.baseDomain); lk.Kind {
	case lookupBySlug:
		ws, err = r.catalog.WorkspaceBySlug(ctx, lk.Slug)
	case lookupByCustomDomain:
		ws, err = r.catalog.WorkspaceByVerifiedCustomDomain(ctx, lk.Host)
	}
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		// The common case: typo'd host, stale DNS, crawler.  Cacheable.
		r.neg.put(host, time.Now())
		metrics.ResolveTotal.WithLabelValues("not_found").Inc()
		return nil
	case err != nil:
		r.log.Warnw("catalog lookup failed", "host", host, "err", err)
		metrics.ResolveTotal.WithLabelValues("error").Inc()
		return nil
	}

	if !ws.MigrationStatus.Ready() {
		r.log.Infow("workspace not ready for traffic",
			"workspace", ws.ID, "status", ws.MigrationStatus)
		metrics.ResolveTotal.WithLabelValues("not_ready").Inc()
		return nil
	}
	if !ws.EncryptedDSN.Valid || ws.EncryptedDSN.String == "" {
		// A completed workspace without a DSN is a data-integrity bug,
		// not a routine not-found.
		r.log.Errorw("workspace has no connection string", "workspace", ws.ID, "slug", ws.Slug)
		metrics.ResolveTotal.WithLabelValues("error").Inc()
		return nil
	}

	db, err := r.cache.Get(ctx, ws.ID, ws.EncryptedDSN.String)
	if err != nil {
		r.log.Errorw("tenant database unavailable", "workspace", ws.ID, "err", err)
		metrics.ResolveTotal.WithLabelValues("error").Inc()
		return nil
	}

	settings, sub := r.fetchContext(ctx, ws.ID, db)

	metrics.ResolveTotal.WithLabelValues("ok").Inc()
	return &Info{
		WorkspaceID:  ws.ID,
		Slug:         ws.Slug,
		DB:           db,
		Settings:     settings,
		Subscription: sub,
	}
}

// fetchContext loads portal settings (tenant DB) and the subscription
// (catalog) concurrently.  Both are optional; a fetch error costs the
// field, not the resolution.
func (r *Resolver) fetchContext(ctx context.Context, workspaceID string, db *sqlx.DB) (*Settings, *SubscriptionInfo) {
	var (
		settings *Settings
		sub      *SubscriptionInfo
	)

	var g errgroup.Group
	g.Go(func() error {
		s, err := settingsForTenant(ctx, db)
		if err != nil {
			r.log.Warnw("settings fetch failed", "workspace", workspaceID, "err", err)
			return nil
		}
		settings = s
		return nil
	})
	g.Go(func() error {
		rec, err := r.catalog.SubscriptionByWorkspace(ctx, workspaceID)
		if err != nil {
			r.log.Warnw("subscription fetch failed", "workspace", workspaceID, "err", err)
			return nil
		}
		if rec == nil {
			return nil
		}
		si := &SubscriptionInfo{
			Tier:       rec.Tier,
			Status:     rec.Status,
			TotalSeats: rec.TotalSeats(),
		}
		if rec.PeriodEnd.Valid {
			t := rec.PeriodEnd.Time
			si.PeriodEnd = &t
		}
		sub = si
		return nil
	})
	_ = g.Wait()

	return settings, sub
}

// KnownHost reports whether the request's host maps to a ready workspace.
// Used by the ForceHTTPS middleware; repeated calls are cheap because the
// connection cache and negative cache absorb the lookups.
func (r *Resolver) KnownHost(req *http.Request) bool {
	return r.ResolveFromDomain(req.Context(), req) != nil
}

// BySlug resolves a workspace for trusted internal callers that already
// know the slug.  Unlike ResolveFromDomain it returns descriptive errors.
func (r *Resolver) BySlug(ctx context.Context, slug string) (*sqlx.DB, string, error) {
	ws, err := r.catalog.WorkspaceBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, "", fmt.Errorf("tenant: no workspace with slug %q: %w", slug, err)
		}
		return nil, "", fmt.Errorf("tenant: lookup %q: %w", slug, err)
	}
	if !ws.MigrationStatus.Ready() {
		return nil, "", fmt.Errorf("tenant: workspace %q has status %q: %w",
			slug, ws.MigrationStatus, ErrNotReady)
	}
	if !ws.EncryptedDSN.Valid || ws.EncryptedDSN.String == "" {
		return nil, "", fmt.Errorf("tenant: workspace %q has no connection string configured", slug)
	}

	db, err := r.cache.Get(ctx, ws.ID, ws.EncryptedDSN.String)
	if err != nil {
		return nil, "", fmt.Errorf("tenant: connect workspace %q: %w", slug, err)
	}
	return db, ws.ID, nil
}
