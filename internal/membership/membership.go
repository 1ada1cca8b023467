// internal/membership/membership.go
//
// Idempotent workspace membership provisioning.
//
// Context
// -------
// A trust-login with portal context may land a user in a workspace they
// have never visited.  FindOrCreate grants the default role on first
// arrival and is a no-op thereafter.  Uniqueness lives in the table's
// (user_id, workspace_id) constraint, so concurrent first arrivals both
// succeed; correctness does not depend on this function serialising.
package membership

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultRole is granted to portal users provisioned via trust-login.
const DefaultRole = "member"

// FindOrCreate ensures a membership row exists for (userID, workspaceID).
func FindOrCreate(ctx context.Context, db *sqlx.DB, userID, workspaceID, role string) error {
	if role == "" {
		role = DefaultRole
	}
	const q = `
        INSERT INTO workspace_member (user_id, workspace_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, workspace_id) DO NOTHING`
	if _, err := db.ExecContext(ctx, q, userID, workspaceID, role); err != nil {
		return fmt.Errorf("membership: find or create: %w", err)
	}
	return nil
}
