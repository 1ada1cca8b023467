// internal/tenant/negcache.go
//
// Short-lived negative cache for unknown hosts.
//
// Context
// -------
// Crawlers and stale DNS hammer the resolver with hosts that will never
// match a workspace, and each one costs a catalog round trip.  Confirmed
// not-found results are remembered for 60 seconds.  Infrastructure errors
// are never cached: a catalog outage must not convert into a minute of
// synthetic 404s.
package tenant

import (
	"sync"
	"time"
)

const negTTL = 60 * time.Second

type negCache struct {
	mu sync.Mutex
	m  map[string]time.Time // host → expiry
}

func newNegCache() *negCache {
	return &negCache{m: make(map[string]time.Time)}
}

// hit reports whether host has a live not-found entry.
func (n *negCache) hit(host string, now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	exp, ok := n.m[host]
	if !ok {
		return false
	}
	if now.After(exp) {
		delete(n.m, host)
		return false
	}
	return true
}

// put records a confirmed not-found for host.
func (n *negCache) put(host string, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Opportunistic sweep keeps the map from growing without bound under
	// a host-scanning client.
	if len(n.m) > 4096 {
		for h, exp := range n.m {
			if now.After(exp) {
				delete(n.m, h)
			}
		}
	}
	n.m[host] = now.Add(negTTL)
}
