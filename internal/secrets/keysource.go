// internal/secrets/keysource.go
//
// Master-key resolution for the secrets Service.
//
// Context
// -------
// Production deployments keep the master key in Vault; development uses a
// hex literal in config or the QB_APP_KEY environment variable.  Priority:
//
//	1. QB_APP_KEY env var (hex)
//	2. secrets.app_key_hex from config
//	3. Vault KV-v2 secret at secrets.vault_path / secrets.vault_field
//
// The key is fetched once at boot; rotation of the master key requires a
// restart (workspace-DSN rotation does not, see the connection cache).
package secrets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/quackback/quackback/internal/config"
)

// ErrNoKeySource means no usable master-key source was configured.
var ErrNoKeySource = errors.New("secrets: no master key configured (set QB_APP_KEY, secrets.app_key_hex, or secrets.vault_path)")

// LoadAppKey resolves the master key per the priority above and returns a
// ready Service.
func LoadAppKey(ctx context.Context, cfg *config.Config) (*Service, error) {
	if h := os.Getenv("QB_APP_KEY"); h != "" {
		return fromHex(h)
	}
	if cfg.Secrets.AppKeyHex != "" {
		return fromHex(cfg.Secrets.AppKeyHex)
	}
	if cfg.Secrets.VaultPath != "" {
		field := cfg.Secrets.VaultField
		if field == "" {
			field = "app_key"
		}
		vc, err := NewVaultSource()
		if err != nil {
			return nil, err
		}
		h, err := vc.FetchKey(ctx, cfg.Secrets.VaultPath, field)
		if err != nil {
			return nil, err
		}
		return fromHex(h)
	}
	return nil, ErrNoKeySource
}

func fromHex(h string) (*Service, error) {
	key, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("secrets: master key is not valid hex: %w", err)
	}
	return New(key)
}
