// Package credentials persists the long-lived refresh token in OS secret
// storage (or a secret manager) keyed by name within a service namespace.
//
// A missing secret is not an error: Read reports it with ok == false and
// Delete treats it as already done.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/shared"
)

// Store is a key/value secret store scoped to one service namespace.
type Store interface {
	// Save stores secret under key, replacing any previous value in one step.
	Save(ctx context.Context, key, secret string) error
	// Read returns the secret stored under key. ok is false when nothing is stored.
	Read(ctx context.Context, key string) (secret string, ok bool, err error)
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// Backend names accepted in credentials.backend.
const (
	BackendKeyring = "keyring"
	BackendVault   = "vault"
	BackendMemory  = "memory"
)

// New builds the Store selected by cfg.Backend.
func New(cfg shared.CredentialsConfig, logger *log.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendKeyring, "":
		return NewKeyringStore(cfg.Service), nil
	case BackendVault:
		token := ""
		if cfg.Vault.TokenEnv != "" {
			token = os.Getenv(cfg.Vault.TokenEnv)
		}
		return NewVaultStore(cfg.Vault, token, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown credentials backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

func storeError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", shared.ErrCredentialStore, op, key, err)
}
