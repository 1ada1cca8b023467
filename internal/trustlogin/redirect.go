// internal/trustlogin/redirect.go
//
// Host validation and callback sanitisation for the trust-login flow.

package trustlogin

import "strings"

// hostMatches reports whether the current host is the one the token was
// issued for.  Exact-domain tokens compare after case and whitespace
// normalisation; subdomain tokens require the host to start with
// "{subdomain}.".  A token with neither target set never matches.
func hostMatches(tok *Token, host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	if tok.TargetDomain.Valid && tok.TargetDomain.String != "" {
		return host == normalizeHost(tok.TargetDomain.String)
	}
	if tok.TargetSubdomain.Valid && tok.TargetSubdomain.String != "" {
		return strings.HasPrefix(host, normalizeHost(tok.TargetSubdomain.String)+".")
	}
	return false
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// safeCallbackPath returns the token's callback when it is a same-origin
// relative path, else the context default.  Absolute and protocol-relative
// URLs ("https://evil.com/x", "//evil.com") are rejected to prevent open
// redirects; "/\" is rejected because browsers treat it like "//".
func safeCallbackPath(tok *Token) string {
	fallback := "/admin"
	if tok.Context == ContextPortal {
		fallback = "/"
	}

	if !tok.CallbackURL.Valid {
		return fallback
	}
	cb := strings.TrimSpace(tok.CallbackURL.String)
	if cb == "" || !strings.HasPrefix(cb, "/") {
		return fallback
	}
	if strings.HasPrefix(cb, "//") || strings.HasPrefix(cb, "/\\") {
		return fallback
	}
	return cb
}
