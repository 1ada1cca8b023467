// internal/tenant/info.go
//
// Request-scoped tenant aggregate.
//
// Context
// -------
// Info groups everything a request handler needs to serve one workspace:
// identity, the shared database handle from the connection cache, and the
// nullable settings and subscription snapshots.  It is rebuilt on every
// resolution; only the underlying handle (and any catalog-side caching)
// persists between requests.  Handlers must treat Info as immutable and
// must never Close the DB — the cache owns its lifecycle.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Info is the composed tenant context returned by the resolver.
type Info struct {
	WorkspaceID  string
	Slug         string
	DB           *sqlx.DB
	Settings     *Settings         // nil when the row is missing or unreadable
	Subscription *SubscriptionInfo // nil for unbilled or self-hosted workspaces
}

// SubscriptionInfo is the billing snapshot layered onto Info.
type SubscriptionInfo struct {
	Tier       string
	Status     string
	TotalSeats int
	PeriodEnd  *time.Time
}

// Settings mirrors the single `portal_settings` row inside each tenant
// database.  Read once per resolution.
type Settings struct {
	PortalName        string `db:"portal_name"`
	AllowPublicSignup bool   `db:"allow_public_signup"`
	RequireApproval   bool   `db:"require_approval"`
	DefaultLocale     string `db:"default_locale"`
}

// settingsForTenant reads the portal settings row from a tenant database.
// A missing row is (nil, nil): a freshly provisioned workspace has none.
func settingsForTenant(ctx context.Context, db *sqlx.DB) (*Settings, error) {
	const q = `
        SELECT portal_name, allow_public_signup, require_approval, default_locale
        FROM   portal_settings
        LIMIT  1`
	var s Settings
	if err := db.GetContext(ctx, &s, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("tenant: settings: %w", err)
	}
	return &s, nil
}
