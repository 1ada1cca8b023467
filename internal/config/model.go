// internal/config/model.go
//
// Typed configuration model for Quackback's tenancy core.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                      – dotenv values,
//   • `conf/global.yaml`                   – primary static file,
//   • `QB_`-prefixed environment overrides – highest precedence.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Tenancy section
//

// Tenancy controls host-to-workspace resolution.  BaseDomain is the apex
// under which workspace slugs live, e.g. "quackback.io" makes
// "acme.quackback.io" resolve to slug "acme".  Any other host is treated
// as a candidate custom domain.  A missing base domain makes the
// HTTP-facing resolver fail closed, so it is required here.
type Tenancy struct {
	BaseDomain string `koanf:"base_domain" validate:"required,fqdn"`
}

//
// Catalog section
//

// Catalog holds the control-plane database DSN.  The catalog database owns
// the workspace registry, domain mappings, subscriptions, transfer tokens,
// sessions, and memberships.
type Catalog struct {
	DSN string `koanf:"dsn" validate:"required"`
}

//
// Cache section
//

// Cache sizes the per-tenant connection cache.  Zero values fall back to
// the conncache package defaults (100 entries, 5-minute idle TTL).
type Cache struct {
	MaxConnections int `koanf:"max_connections" validate:"omitempty,min=1"`
	IdleTTLMinutes int `koanf:"idle_ttl_minutes" validate:"omitempty,min=1"`
}

//
// Secrets section
//

// Secrets locates the application master key used to decrypt per-workspace
// connection strings.  Exactly one source must be usable at boot: a hex
// literal (dev), or a Vault KV-v2 secret (production).  The loader does not
// arbitrate between them; `secrets.LoadAppKey` does.
type Secrets struct {
	AppKeyHex  string `koanf:"app_key_hex"`
	VaultPath  string `koanf:"vault_path"`
	VaultField string `koanf:"vault_field"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2-City database used to enrich request
// logs.  An empty path disables geolocation; nothing else depends on it.
type Geo struct {
	CityDBPath string `koanf:"city_db_path"`
}

//
// Session section
//

// Session tunes issued-session lifetime and the cookie name shared across
// tenant subdomains.
type Session struct {
	CookieName string `koanf:"cookie_name"`
	TTLHours   int    `koanf:"ttl_hours" validate:"omitempty,min=1"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or QB_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // QB_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Tenancy Tenancy `koanf:"tenancy"`
	Catalog Catalog `koanf:"catalog"`
	Cache   Cache   `koanf:"cache"`
	Secrets Secrets `koanf:"secrets"`
	Geo     Geo     `koanf:"geo"`
	Session Session `koanf:"session"`
	Paths   Paths   `koanf:"-"` // not loaded from config files
}
