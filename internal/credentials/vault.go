package credentials

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/vault/api"

	"github.com/desertthunder/spotsync/internal/shared"
)

const vaultField = "value"

// VaultStore keeps secrets in a Vault KV v2 mount at <mount>/data/<path>/<key>,
// under the field "value". Every Save writes a new version atomically.
type VaultStore struct {
	client *api.Client
	mount  string
	prefix string
	logger *log.Logger
}

// NewVaultStore connects to the Vault server described by cfg.
func NewVaultStore(cfg shared.VaultConfig, token string, logger *log.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	if cfg.Address != "" {
		config.Address = cfg.Address
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create vault client: %v", shared.ErrCredentialStore, err)
	}
	if token != "" {
		client.SetToken(token)
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}

	return &VaultStore{
		client: client,
		mount:  mount,
		prefix: cfg.Path,
		logger: shared.WithLogger(logger, "component", "vault", "mount", mount),
	}, nil
}

func (s *VaultStore) dataPath(key string) string {
	return path.Join(s.mount, "data", s.prefix, key)
}

func (s *VaultStore) metadataPath(key string) string {
	return path.Join(s.mount, "metadata", s.prefix, key)
}

func (s *VaultStore) Save(ctx context.Context, key, secret string) error {
	body := map[string]any{"data": map[string]any{vaultField: secret}}
	if _, err := s.client.Logical().WriteWithContext(ctx, s.dataPath(key), body); err != nil {
		return storeError("save", key, err)
	}
	s.logger.Debug("secret written", "key", key)
	return nil
}

func (s *VaultStore) Read(ctx context.Context, key string) (string, bool, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.dataPath(key))
	if err != nil {
		return "", false, storeError("read", key, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	// Soft-deleted versions come back with "data": null.
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return "", false, nil
	}
	value, ok := data[vaultField].(string)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Delete removes every version of key along with its metadata.
func (s *VaultStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(key)); err != nil {
		var respErr *api.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return storeError("delete", key, err)
	}
	s.logger.Debug("secret deleted", "key", key)
	return nil
}
