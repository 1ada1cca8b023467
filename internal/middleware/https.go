// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"strings"
)

// HostChecker reports whether a host is known to the tenancy layer.  The
// tenant resolver satisfies it; tests use a func literal.
type HostChecker interface {
	KnownHost(r *http.Request) bool
}

// HostCheckerFunc adapts a function to HostChecker.
type HostCheckerFunc func(r *http.Request) bool

func (f HostCheckerFunc) KnownHost(r *http.Request) bool { return f(r) }

// ForceHTTPS wraps h.  If the request is plain HTTP, the host is not
// "localhost", and the checker confirms a workspace exists for it, the
// wrapper issues a 308 Permanent Redirect to the HTTPS version of the
// same URL.  Unknown hosts keep the normal flow (likely a 404 later), so
// the redirect never becomes a host-existence oracle beyond what the
// portal itself reveals.
func ForceHTTPS(checker HostChecker, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || stripPort(r.Host) == "localhost" {
			h.ServeHTTP(w, r)
			return
		}

		if checker.KnownHost(r) {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
