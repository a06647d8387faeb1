package credentials

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. Secrets vanish with the process.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
	// FailWith, when set, is returned by every operation.
	FailWith error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) Save(ctx context.Context, key, secret string) error {
	if err := s.check(ctx, "save", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = secret
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(ctx, "read", key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[key]
	return secret, ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, "delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailWith != nil {
		return storeError(op, key, s.FailWith)
	}
	return nil
}
