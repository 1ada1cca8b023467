// internal/session/session.go
//
// Catalog-backed authenticated sessions.
//
// Context
// -------
// Sessions live in the catalog database so a login issued on one tenant
// subdomain is visible on every host the user moves to.  The cookie
// carries only the opaque session token; everything else is a server-side
// row.  The trust-login flow is the main producer; ordinary sign-in flows
// reuse the same store.
//
// Notes
// -----
//   - Token is a v4 UUID: 122 bits of randomness, indexed as text.
//   - Secure is derived from the request so local development over plain
//     HTTP keeps working.
//   - Oxford commas, two spaces after periods.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultTTL applies when the config leaves session.ttl_hours unset.
const DefaultTTL = 14 * 24 * time.Hour

// DefaultCookieName applies when session.cookie_name is unset.
const DefaultCookieName = "qb_session"

// Record is one issued session.
type Record struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Store issues and persists sessions.
type Store struct {
	db         *sqlx.DB
	cookieName string
	ttl        time.Duration
}

// NewStore wires a Store over the catalog pool.  Zero values fall back to
// the package defaults.
func NewStore(db *sqlx.DB, cookieName string, ttl time.Duration) *Store {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, cookieName: cookieName, ttl: ttl}
}

// Create persists a new session for userID and returns it.
func (s *Store) Create(ctx context.Context, userID string) (*Record, error) {
	rec := &Record{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	const q = `
        INSERT INTO session (token, user_id, expires_at)
        VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, q, rec.Token, rec.UserID, rec.ExpiresAt); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return rec, nil
}

// SetCookie installs the session cookie on the response.
func (s *Store) SetCookie(w http.ResponseWriter, r *http.Request, rec *Record) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    rec.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  rec.ExpiresAt,
	})
}

// ClearCookie expires the session cookie.
func (s *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// CookieName exposes the configured cookie name for middleware.
func (s *Store) CookieName() string { return s.cookieName }
