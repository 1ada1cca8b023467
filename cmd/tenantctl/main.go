// cmd/tenantctl/main.go
//
// Operator CLI for the tenancy core.
//
// Subcommands
// -----------
//
//	tenantctl ping -slug acme
//	    Resolve a workspace by slug, connect to its database, and ping it.
//	    Uses the strict BySlug path, so a missing or unready workspace
//	    prints a descriptive error instead of a silent failure.
//
//	tenantctl encrypt-dsn -workspace ws_1 -dsn postgres://…
//	    Seal a plaintext DSN for the given workspace id.  Provisioning
//	    writes the output into the catalog's encrypted_dsn column.
//
//	tenantctl issue-token -user u_1 -subdomain acme [-workspace ws_1] [-callback /path]
//	    Create a trust-login transfer token and print its raw value.
//
// Backfill scripts and support engineers are the audience; errors are
// verbose on purpose.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/quackback/quackback/internal/catalog"
	"github.com/quackback/quackback/internal/config"
	"github.com/quackback/quackback/internal/database"
	"github.com/quackback/quackback/internal/secrets"
	"github.com/quackback/quackback/internal/tenant"
	"github.com/quackback/quackback/internal/tenant/conncache"
	"github.com/quackback/quackback/internal/trustlogin"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "ping":
		runPing(ctx, cfg, os.Args[2:])
	case "encrypt-dsn":
		runEncryptDSN(ctx, cfg, os.Args[2:])
	case "issue-token":
		runIssueToken(ctx, cfg, os.Args[2:])
	default:
		usage()
	}
}

func runPing(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	slug := fs.String("slug", "", "workspace slug")
	_ = fs.Parse(args)
	if *slug == "" {
		fatal("ping: -slug is required")
	}

	dec, err := secrets.LoadAppKey(ctx, cfg)
	if err != nil {
		fatal("resolve master key: %v", err)
	}
	catalogDB, err := database.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		fatal("connect catalog DB: %v", err)
	}
	defer catalogDB.Close()

	connect := func(ctx context.Context, dsn string) (*sqlx.DB, error) {
		return database.OpenWithOptions(ctx, dsn, database.Options{MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute})
	}
	cache := conncache.New(dec, connect, 1, time.Minute, zap.NewNop().Sugar())
	defer cache.ClearAll()

	resolver := tenant.NewResolver(catalog.New(catalogDB), cache, cfg.Tenancy.BaseDomain, zap.NewNop().Sugar())
	db, wsID, err := resolver.BySlug(ctx, *slug)
	if err != nil {
		fatal("%v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		fatal("ping workspace %s: %v", wsID, err)
	}
	fmt.Printf("workspace %s (%s) is reachable\n", *slug, wsID)
}

func runEncryptDSN(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("encrypt-dsn", flag.ExitOnError)
	workspace := fs.String("workspace", "", "workspace id (encryption context)")
	dsn := fs.String("dsn", "", "plaintext DSN to seal")
	_ = fs.Parse(args)
	if *workspace == "" || *dsn == "" {
		fatal("encrypt-dsn: -workspace and -dsn are required")
	}

	svc, err := secrets.LoadAppKey(ctx, cfg)
	if err != nil {
		fatal("resolve master key: %v", err)
	}
	ct, err := svc.Encrypt(*dsn, *workspace)
	if err != nil {
		fatal("encrypt: %v", err)
	}
	fmt.Println(ct)
}

func runIssueToken(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	subdomain := fs.String("subdomain", "", "target workspace subdomain")
	workspace := fs.String("workspace", "", "workspace id for portal membership (optional)")
	callback := fs.String("callback", "", "relative callback path (optional)")
	loginCtx := fs.String("context", trustlogin.ContextPortal, "login context")
	_ = fs.Parse(args)
	if *user == "" || *subdomain == "" {
		fatal("issue-token: -user and -subdomain are required")
	}

	catalogDB, err := database.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		fatal("connect catalog DB: %v", err)
	}
	defer catalogDB.Close()

	tok := trustlogin.Token{
		UserID:          *user,
		TargetSubdomain: sql.NullString{String: *subdomain, Valid: true},
		Context:         *loginCtx,
	}
	if *workspace != "" {
		tok.WorkspaceID = sql.NullString{String: *workspace, Valid: true}
	}
	if *callback != "" {
		tok.CallbackURL = sql.NullString{String: *callback, Valid: true}
	}

	raw, err := trustlogin.NewTokenStore(catalogDB).Issue(ctx, tok)
	if err != nil {
		fatal("issue token: %v", err)
	}
	fmt.Println(raw)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tenantctl <ping|encrypt-dsn|issue-token> [flags]")
	os.Exit(2)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tenantctl: "+format+"\n", args...)
	os.Exit(1)
}
