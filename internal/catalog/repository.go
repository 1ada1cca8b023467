// internal/catalog/repository.go
//
// Read-only queries against the catalog database.
//
// Context
// -------
// Workspace lookup happens on every uncached tenant resolution, so the two
// finder queries are single-row index hits.  Custom domains resolve through
// the `workspace_domain` mapping table; only rows of type "custom" with a
// verification timestamp may route traffic, so unverified mappings are
// filtered in SQL rather than in Go.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no workspace matches the lookup key.  The
// resolver treats it as a normal negative result, not a failure.
var ErrNotFound = errors.New("catalog: workspace not found")

// Repository wraps the catalog pool.  Construct once at boot and inject.
type Repository struct {
	db *sqlx.DB
}

// New returns a Repository over the given catalog pool.
func New(db *sqlx.DB) *Repository { return &Repository{db: db} }

const workspaceCols = `id, slug, name, migration_status, encrypted_dsn, created_at, updated_at`

// WorkspaceBySlug fetches one workspace by its URL slug.
func (r *Repository) WorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error) {
	const q = `
        SELECT ` + workspaceCols + `
        FROM   workspace
        WHERE  slug = $1
        LIMIT  1`
	var ws Workspace
	if err := r.db.GetContext(ctx, &ws, q, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: workspace by slug: %w", err)
	}
	return &ws, nil
}

// WorkspaceByVerifiedCustomDomain fetches the workspace behind a verified
// custom-domain mapping.  Unverified or non-custom mappings never resolve.
func (r *Repository) WorkspaceByVerifiedCustomDomain(ctx context.Context, host string) (*Workspace, error) {
	const q = `
        SELECT w.id, w.slug, w.name, w.migration_status, w.encrypted_dsn,
               w.created_at, w.updated_at
        FROM   workspace w
        JOIN   workspace_domain d ON d.workspace_id = w.id
        WHERE  d.hostname = $1
          AND  d.domain_type = 'custom'
          AND  d.verified_at IS NOT NULL
        LIMIT  1`
	var ws Workspace
	if err := r.db.GetContext(ctx, &ws, q, host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: workspace by custom domain: %w", err)
	}
	return &ws, nil
}

// SubscriptionByWorkspace fetches the billing record for one workspace.
// A missing row returns (nil, nil): not every workspace is billed.
func (r *Repository) SubscriptionByWorkspace(ctx context.Context, workspaceID string) (*Subscription, error) {
	const q = `
        SELECT workspace_id, tier, status, included_seats, additional_seats,
               current_period_end
        FROM   subscription
        WHERE  workspace_id = $1
        LIMIT  1`
	var sub Subscription
	if err := r.db.GetContext(ctx, &sub, q, workspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: subscription: %w", err)
	}
	return &sub, nil
}
