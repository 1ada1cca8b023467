// internal/tenant/lookup.go
//
// Host-header classification: slug subdomain vs custom domain.
//
// Context
// -------
// "acme.quackback.io" is a workspace slug under the configured base
// domain; "feedback.customer.com" is a candidate custom domain that must
// match a verified mapping row.  The decision is a pure function over two
// strings, kept separate from all I/O so the branching is testable on its
// own.
package tenant

import "strings"

type lookupKind int

const (
	lookupBySlug lookupKind = iota
	lookupByCustomDomain
)

// lookup is the tagged result of decideLookup.  Exactly one of Slug or
// Host is meaningful, selected by Kind.
type lookup struct {
	Kind lookupKind
	Slug string // set when Kind == lookupBySlug
	Host string // set when Kind == lookupByCustomDomain
}

// decideLookup classifies host.  A host is a slug lookup only when it
// ends with ".{baseDomain}" and the remaining prefix is a single label;
// nested subdomains ("a.b.quackback.io"), the bare apex, and every other
// host fall through to the custom-domain path.
func decideLookup(host, baseDomain string) lookup {
	suffix := "." + baseDomain
	if strings.HasSuffix(host, suffix) {
		prefix := strings.TrimSuffix(host, suffix)
		if prefix != "" && !strings.Contains(prefix, ".") {
			return lookup{Kind: lookupBySlug, Slug: prefix}
		}
	}
	return lookup{Kind: lookupByCustomDomain, Host: host}
}

// stripPort removes any ":port" suffix from the Host header.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
