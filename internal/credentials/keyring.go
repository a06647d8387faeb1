package credentials

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps secrets in the platform keychain (macOS Keychain, the
// freedesktop Secret Service, or Windows Credential Manager). The service name
// is the namespace and the key is the account.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a Store namespaced by service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Save upserts secret. Keychain backends overwrite the existing item in place.
func (s *KeyringStore) Save(ctx context.Context, key, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Set(s.service, key, secret); err != nil {
		return storeError("save", key, err)
	}
	return nil
}

func (s *KeyringStore) Read(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	secret, err := keyring.Get(s.service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, storeError("read", key, err)
	}
	return secret, true, nil
}

func (s *KeyringStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return storeError("delete", key, err)
	}
	return nil
}
