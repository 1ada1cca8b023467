// internal/trustlogin/redirect_test.go
//
// Unit-tests for host validation and callback sanitisation.
//
// Run: go test ./internal/trustlogin -v

package trustlogin

import (
	"database/sql"
	"testing"
)

func domainToken(domain string) *Token {
	return &Token{TargetDomain: sql.NullString{String: domain, Valid: true}}
}

func subdomainToken(sub string) *Token {
	return &Token{TargetSubdomain: sql.NullString{String: sub, Valid: true}}
}

func TestHostMatches(t *testing.T) {
	cases := []struct {
		name string
		tok  *Token
		host string
		want bool
	}{
		{"exact domain", domainToken("feedback.customer.com"), "feedback.customer.com", true},
		{"case and whitespace normalised", domainToken("  Feedback.Customer.COM "), "feedback.customer.com", true},
		{"different domain", domainToken("feedback.customer.com"), "evil.com", false},
		{"subdomain match", subdomainToken("acme"), "acme.quackback.io", true},
		{"subdomain is a prefix label", subdomainToken("acme"), "acmecorp.quackback.io", false},
		{"wrong subdomain", subdomainToken("acme"), "other.quackback.io", false},
		{"no target set", &Token{}, "acme.quackback.io", false},
		{"empty host", domainToken("feedback.customer.com"), "", false},
	}

	for _, c := range cases {
		if got := hostMatches(c.tok, c.host); got != c.want {
			t.Errorf("%s: hostMatches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSafeCallbackPath(t *testing.T) {
	mk := func(cb, loginCtx string) *Token {
		return &Token{
			Context:     loginCtx,
			CallbackURL: sql.NullString{String: cb, Valid: cb != ""},
		}
	}

	cases := []struct {
		name string
		tok  *Token
		want string
	}{
		{"relative path accepted", mk("/posts/42", ContextPortal), "/posts/42"},
		{"absolute url rejected, portal default", mk("https://evil.com/x", ContextPortal), "/"},
		{"absolute url rejected, admin default", mk("https://evil.com/x", "dashboard"), "/admin"},
		{"protocol-relative rejected", mk("//evil.com", ContextPortal), "/"},
		{"backslash trick rejected", mk(`/\evil.com`, ContextPortal), "/"},
		{"missing callback, portal", mk("", ContextPortal), "/"},
		{"missing callback, admin", mk("", "dashboard"), "/admin"},
		{"no leading slash rejected", mk("posts/42", ContextPortal), "/"},
	}

	for _, c := range cases {
		if got := safeCallbackPath(c.tok); got != c.want {
			t.Errorf("%s: safeCallbackPath = %q, want %q", c.name, got, c.want)
		}
	}
}
