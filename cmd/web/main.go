// cmd/web/main.go
//
// Quackback tenancy core – HTTP entry point.
//
// Request life-cycle
// ------------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load config, resolve the DSN master key (env or Vault), and open
//     the catalog database.
//
//  4. Build the per-workspace connection cache and the tenant resolver.
//
//  5. Mount /metrics, the trust-login redemption endpoint, and the
//     catch-all tenant handler on a chi router.
//
//  6. Wrap with request-info enrichment, security headers, and (when
//     configured) ForceHTTPS, then serve with hardened timeouts.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quackback/quackback/internal/catalog"
	"github.com/quackback/quackback/internal/config"
	"github.com/quackback/quackback/internal/database"
	"github.com/quackback/quackback/internal/logger"
	"github.com/quackback/quackback/internal/middleware"
	"github.com/quackback/quackback/internal/requestinfo"
	"github.com/quackback/quackback/internal/secrets"
	"github.com/quackback/quackback/internal/server"
	"github.com/quackback/quackback/internal/session"
	"github.com/quackback/quackback/internal/tenant"
	"github.com/quackback/quackback/internal/tenant/conncache"
	"github.com/quackback/quackback/internal/trustlogin"
)

const serverEnvPath = "/usr/local/etc/quackback/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	//
	// ── 1.  Master key + catalog DB ─────────────────────────────────────
	//
	dec, err := secrets.LoadAppKey(ctx, cfg)
	if err != nil {
		logOut.Fatalf("resolve master key: %v", err)
	}

	catalogDB, err := database.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		logOut.Fatalf("connect catalog DB: %v", err)
	}
	defer catalogDB.Close()
	logOut.Infow("catalog DB online")

	if cfg.Geo.CityDBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.CityDBPath); err != nil {
			logOut.Warnw("geo database unavailable, lookups disabled", "err", err)
		}
	}

	//
	// ── 2.  Connection cache + resolver ─────────────────────────────────
	//
	connect := func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		return database.OpenWithOptions(ctx, dsn, database.Options{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			Retries:         2,
			RetryBackoff:    500 * time.Millisecond,
		})
	}

	cache := conncache.New(dec, connect,
		cfg.Cache.MaxConnections,
		time.Duration(cfg.Cache.IdleTTLMinutes)*time.Minute,
		logOut,
	)
	defer cache.ClearAll()

	resolver := tenant.NewResolver(catalog.New(catalogDB), cache, cfg.Tenancy.BaseDomain, logOut)

	//
	// ── 3.  Session + trust-login wiring ────────────────────────────────
	//
	sessions := session.NewStore(catalogDB,
		cfg.Session.CookieName,
		time.Duration(cfg.Session.TTLHours)*time.Hour,
	)
	trust := trustlogin.NewHandler(trustlogin.NewTokenStore(catalogDB), sessions, catalogDB, logOut)

	//
	// ── 4.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(requestinfo.Enrich)
	r.Use(middleware.Security)

	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/auth/trust-login", trust)

	// Catch-all: resolve the tenant and hand back its portal context.
	// Rendering belongs to the portal application; this process answers
	// with the composed identity so downstream services can consume it.
	r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
		info := resolver.ResolveFromDomain(req.Context(), req)
		if info == nil {
			http.Error(w, "workspace not found", http.StatusNotFound)
			return
		}

		payload := map[string]any{
			"workspace_id": info.WorkspaceID,
			"slug":         info.Slug,
		}
		if info.Settings != nil {
			payload["portal_name"] = info.Settings.PortalName
			payload["default_locale"] = info.Settings.DefaultLocale
		}
		if info.Subscription != nil {
			payload["tier"] = info.Subscription.Tier
			payload["seats"] = info.Subscription.TotalSeats
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})

	var handler http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(resolver, handler)
	}

	srv := server.New(cfg.HTTP.ListenAddr, handler)
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil {
		logOut.Fatalf("http server: %v", err)
	}
}
