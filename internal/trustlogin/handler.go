// internal/trustlogin/handler.go
//
// HTTP endpoint that redeems a transfer token into a session.
//
/*
Context
--------
GET /auth/trust-login?token=…

State machine per token: issued → exactly one of {consumed-success,
consumed-invalid-domain, expired/not-found}.  The delete inside Consume is
the transition; everything after it operates on an already-spent token.
That ordering is intentional: a token observed on the wrong host is
treated as potentially stolen, so the domain check happens *after*
consumption and a mismatch burns the token rather than leaving it
redeemable elsewhere.

Failure surface is a uniform redirect to /login?error={invalid_token|
invalid_domain|session_error}.  The three internal causes of
invalid_token (never existed, expired, already used) are deliberately
indistinguishable so the endpoint is useless as a token-guessing oracle.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package trustlogin

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quackback/quackback/internal/membership"
	"github.com/quackback/quackback/internal/metrics"
	"github.com/quackback/quackback/internal/requestinfo"
	"github.com/quackback/quackback/internal/session"
)

// Redemption outcomes, surfaced only as the login-page error parameter.
const (
	outcomeSuccess       = "success"
	outcomeInvalidToken  = "invalid_token"
	outcomeInvalidDomain = "invalid_domain"
	outcomeSessionError  = "session_error"
)

const loginErrorPath = "/login?error="

// Handler redeems transfer tokens.  catalogDB backs membership rows; the
// session store owns cookie issuance.
type Handler struct {
	tokens    *TokenStore
	sessions  *session.Store
	catalogDB *sqlx.DB
	log       *zap.SugaredLogger
}

// NewHandler wires the redemption endpoint.
func NewHandler(tokens *TokenStore, sessions *session.Store, catalogDB *sqlx.DB, log *zap.SugaredLogger) *Handler {
	return &Handler{
		tokens:    tokens,
		sessions:  sessions,
		catalogDB: catalogDB,
		log:       log,
	}
}

// ServeHTTP implements the redemption flow.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("token")
	if raw == "" {
		h.finish(w, r, outcomeInvalidToken)
		return
	}

	tok, err := h.tokens.Consume(ctx, raw, time.Now())
	if err != nil {
		h.log.Errorw("transfer-token consume failed", "err", err)
		h.finish(w, r, outcomeSessionError)
		return
	}
	if tok == nil {
		// Unknown, expired, or already used; no further detail leaves
		// the process.
		h.finish(w, r, outcomeInvalidToken)
		return
	}

	host := stripPort(r.Host)
	if !hostMatches(tok, host) {
		// The token is already deleted, so it cannot be replayed on the
		// right host either.  Log enough to investigate.
		fields := []any{"user", tok.UserID, "host", host}
		if ri := requestinfo.FromContext(ctx); ri != nil {
			fields = append(fields, "ua", ri.UA.Browser, "ip", ri.Geo.IP, "country", ri.Geo.CountryISO)
		}
		h.log.Warnw("transfer token presented on wrong host", fields...)
		h.finish(w, r, outcomeInvalidDomain)
		return
	}

	if tok.Context == ContextPortal && tok.WorkspaceID.Valid {
		if err := membership.FindOrCreate(ctx, h.catalogDB, tok.UserID, tok.WorkspaceID.String, membership.DefaultRole); err != nil {
			h.log.Errorw("membership provisioning failed",
				"user", tok.UserID, "workspace", tok.WorkspaceID.String, "err", err)
			h.finish(w, r, outcomeSessionError)
			return
		}
	}

	sess, err := h.sessions.Create(ctx, tok.UserID)
	if err != nil {
		// The token stays consumed; the user restarts the originating
		// flow rather than retrying a half-spent one.
		h.log.Errorw("session issuance failed", "user", tok.UserID, "err", err)
		h.finish(w, r, outcomeSessionError)
		return
	}

	h.sessions.SetCookie(w, r, sess)
	metrics.TrustLoginTotal.WithLabelValues(outcomeSuccess).Inc()
	http.Redirect(w, r, safeCallbackPath(tok), http.StatusFound)
}

// finish records the outcome and redirects to the login error page.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, outcome string) {
	metrics.TrustLoginTotal.WithLabelValues(outcome).Inc()
	http.Redirect(w, r, loginErrorPath+outcome, http.StatusFound)
}

// stripPort removes any ":port" suffix from the Host header.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
