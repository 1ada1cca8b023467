// Package metrics holds Prometheus instruments that are used across the
// tenancy core.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenantConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_connections_active",
			Help: "Number of tenant database handles currently cached in memory.",
		})

	ConnCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_conncache_hits_total",
			Help: "Cumulative number of connection-cache hits (no decrypt, no connect).",
		})

	ConnCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_conncache_misses_total",
			Help: "Cumulative number of connection-cache misses, including credential rotations.",
		})

	ConnCacheEvictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_conncache_evictions_total",
			Help: "Cumulative number of cache entries evicted, by reason.",
		},
		[]string{"reason"}, // idle, lru, rotation, clear
	)

	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolve_total",
			Help: "Cumulative tenant resolution attempts, by result.",
		},
		[]string{"result"}, // ok, not_found, not_ready, error
	)

	TrustLoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_login_total",
			Help: "Cumulative trust-login token redemptions, by outcome.",
		},
		[]string{"outcome"}, // success, invalid_token, invalid_domain, session_error
	)
)

func init() {
	prometheus.MustRegister(
		ActiveTenantConns,
		ConnCacheHitsTotal,
		ConnCacheMissesTotal,
		ConnCacheEvictTotal,
		ResolveTotal,
		TrustLoginTotal,
	)
}
