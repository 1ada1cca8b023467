// internal/catalog/repository_test.go
//
// Unit-tests for catalog finder queries using sqlmock.
//
// Run: go test ./internal/catalog -v

package catalog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func workspaceRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "slug", "name", "migration_status", "encrypted_dsn", "created_at", "updated_at",
	}).AddRow("ws_1", "acme", "Acme Inc", "completed", "ct==", now, now)
}

func TestWorkspaceBySlug(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM\s+workspace\s+WHERE\s+slug = \$1`).
		WithArgs("acme").
		WillReturnRows(workspaceRows())

	ws, err := repo.WorkspaceBySlug(context.Background(), "acme")
	if err != nil {
		t.Fatalf("WorkspaceBySlug: %v", err)
	}
	if ws.ID != "ws_1" || !ws.MigrationStatus.Ready() {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestWorkspaceBySlug_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM\s+workspace`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.WorkspaceBySlug(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWorkspaceByVerifiedCustomDomain(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`d.domain_type = 'custom'`)).
		WithArgs("feedback.customer.com").
		WillReturnRows(workspaceRows())

	ws, err := repo.WorkspaceByVerifiedCustomDomain(context.Background(), "feedback.customer.com")
	if err != nil {
		t.Fatalf("WorkspaceByVerifiedCustomDomain: %v", err)
	}
	if ws.Slug != "acme" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
}

func TestSubscriptionByWorkspace_MissingRowIsNil(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM\s+subscription`).
		WithArgs("ws_1").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}))

	sub, err := repo.SubscriptionByWorkspace(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("SubscriptionByWorkspace: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected nil subscription, got %+v", sub)
	}
}

func TestSubscriptionTotalSeats(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM\s+subscription`).
		WithArgs("ws_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"workspace_id", "tier", "status", "included_seats", "additional_seats", "current_period_end",
		}).AddRow("ws_1", "growth", "active", 5, 3, time.Now()))

	sub, err := repo.SubscriptionByWorkspace(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("SubscriptionByWorkspace: %v", err)
	}
	if got := sub.TotalSeats(); got != 8 {
		t.Fatalf("TotalSeats = %d, want 8", got)
	}
}
