// internal/trustlogin/token.go
//
// One-time session-transfer tokens.
//
// Context
// -------
// A transfer token hands an authenticated session from the apex domain to
// a tenant host without re-authenticating.  The single hard guarantee is
// single use: Consume deletes and returns the row in one statement, so
// two concurrent redemptions of the same token can never both succeed —
// the database adjudicates, not application locking.  A check-then-delete
// would race and is deliberately absent.
//
// Notes
// -----
//   - "Not found", "expired", and "already used" are indistinguishable to
//     callers; all come back as (nil, nil).
//   - Oxford commas, two spaces after periods.
package trustlogin

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultTokenTTL is the issuance window for transfer tokens.
const DefaultTokenTTL = 30 * 24 * time.Hour

// ContextPortal marks tokens that must provision portal membership on
// first arrival.
const ContextPortal = "portal"

// Token mirrors one row in the `transfer_token` table.  Exactly one of
// TargetDomain or TargetSubdomain is set at issuance.
type Token struct {
	Token           string         `db:"token"`
	UserID          string         `db:"user_id"`
	WorkspaceID     sql.NullString `db:"workspace_id"`
	TargetDomain    sql.NullString `db:"target_domain"`
	TargetSubdomain sql.NullString `db:"target_subdomain"`
	Context         string         `db:"login_context"`
	CallbackURL     sql.NullString `db:"callback_url"`
	ExpiresAt       time.Time      `db:"expires_at"`
}

// TokenStore persists transfer tokens in the catalog database.
type TokenStore struct {
	db *sqlx.DB
}

// NewTokenStore wires a TokenStore over the catalog pool.
func NewTokenStore(db *sqlx.DB) *TokenStore { return &TokenStore{db: db} }

// Consume atomically deletes and returns the unexpired token row, or
// (nil, nil) when no such row exists.  Whatever happens afterwards, a
// consumed token is gone for good.
func (s *TokenStore) Consume(ctx context.Context, raw string, now time.Time) (*Token, error) {
	const q = `
        DELETE FROM transfer_token
        WHERE  token = $1
          AND  expires_at > $2
        RETURNING token, user_id, workspace_id, target_domain, target_subdomain,
                  login_context, callback_url, expires_at`
	var tok Token
	if err := s.db.GetContext(ctx, &tok, q, raw, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("trustlogin: consume token: %w", err)
	}
	return &tok, nil
}

// Issue creates a token for the originating authentication flow and
// returns its raw value.  ExpiresAt defaults to now + DefaultTokenTTL
// when zero.
func (s *TokenStore) Issue(ctx context.Context, tok Token) (string, error) {
	raw, err := newRawToken()
	if err != nil {
		return "", err
	}
	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = time.Now().Add(DefaultTokenTTL)
	}

	const q = `
        INSERT INTO transfer_token
            (token, user_id, workspace_id, target_domain, target_subdomain,
             login_context, callback_url, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.db.ExecContext(ctx, q,
		raw, tok.UserID, tok.WorkspaceID, tok.TargetDomain, tok.TargetSubdomain,
		tok.Context, tok.CallbackURL, tok.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("trustlogin: issue token: %w", err)
	}
	return raw, nil
}

// newRawToken returns 256 bits of URL-safe randomness.
func newRawToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("trustlogin: token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
