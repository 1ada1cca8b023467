// internal/secrets/vault.go
//
// Vault-backed master-key source.
//
// Context
// -------
//   - Thin wrapper around the HashiCorp Vault Go SDK, scoped to the single
//     read this package needs: one KV-v2 field holding the hex master key.
//   - Address and TLS settings come from the standard VAULT_* environment
//     variables; VAULT_TOKEN falls back to ~/.vault-token via the SDK.
//
// Notes
// -----
//   - Token renewal is the operator's concern here; the key is read once at
//     boot, so a short-lived token is sufficient.
//   - Oxford commas, two spaces after periods.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultSource reads the master key from a KV-v2 mount.
type VaultSource struct {
	api *vault.Client
}

// NewVaultSource builds a client from the VAULT_* environment.
func NewVaultSource() (*VaultSource, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		api.SetToken(tok)
	}
	return &VaultSource{api: api}, nil
}

// FetchKey reads one string field from a KV-v2 secret.  secretPath is
// "mount/relative/path"; field is the key inside the secret's data map.
func (v *VaultSource) FetchKey(ctx context.Context, secretPath, field string) (string, error) {
	mount, rel := splitMount(secretPath)
	sec, err := v.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[field]
	if !ok {
		return "", fmt.Errorf("field %q not found in secret %q", field, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, field)
	}
	return sval, nil
}

// splitMount separates the mount name from the relative secret path.
func splitMount(p string) (mount, rel string) {
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
