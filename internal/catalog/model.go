// internal/catalog/model.go
//
// Row types for the catalog (control-plane) database.
//
// Context
// -------
// The catalog owns the workspace registry: one row per customer workspace,
// its provisioning state, the encrypted DSN of its dedicated database, the
// custom-domain mappings pointing at it, and its billing subscription.
// The tenancy core only ever reads these tables; provisioning and billing
// jobs write them.
package catalog

import (
	"database/sql"
	"time"
)

//
// Migration status
//

// MigrationStatus tracks workspace provisioning.  Only StatusCompleted
// permits traffic; every other state makes the resolver fail closed.
type MigrationStatus string

const (
	StatusPending      MigrationStatus = "pending"
	StatusProvisioning MigrationStatus = "provisioning"
	StatusCompleted    MigrationStatus = "completed"
	StatusFailed       MigrationStatus = "failed"
)

// Ready reports whether the workspace may serve requests.
func (m MigrationStatus) Ready() bool { return m == StatusCompleted }

//
// Workspace
//

// Workspace mirrors one row in the `workspace` table.  EncryptedDSN is
// ciphertext sealed by internal/secrets with the workspace id as context;
// it changes on credential rotation, which is exactly what the connection
// cache fingerprints.
type Workspace struct {
	ID              string          `db:"id"`
	Slug            string          `db:"slug"`
	Name            string          `db:"name"`
	MigrationStatus MigrationStatus `db:"migration_status"`
	EncryptedDSN    sql.NullString  `db:"encrypted_dsn"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

//
// Subscription
//

// Subscription mirrors one row in the `subscription` table.  Absence of a
// row is valid (self-hosted, or not yet billed) and is not an error.
type Subscription struct {
	WorkspaceID     string       `db:"workspace_id"`
	Tier            string       `db:"tier"`
	Status          string       `db:"status"`
	IncludedSeats   int          `db:"included_seats"`
	AdditionalSeats int          `db:"additional_seats"`
	PeriodEnd       sql.NullTime `db:"current_period_end"`
}

// TotalSeats is the seat count surfaced to callers: included + purchased.
func (s *Subscription) TotalSeats() int { return s.IncludedSeats + s.AdditionalSeats }
