package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

type CredentialStore struct {
	mu    sync.RWMutex
	items []core.Credential
}

// NewCredentialStore seeds the store with active keys.
func NewCredentialStore(keys ...string) *CredentialStore {
	store := &CredentialStore{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		store.items = append(store.items, core.Credential{
			PublicKey: key,
			Status:    core.CredentialStatusActive,
			CreatedAt: time.Now().UTC(),
		})
	}
	return store
}

func (s *CredentialStore) ListCredentials(context.Context) ([]core.Credential, error) {
	if s == nil {
		return nil, fmt.Errorf("memstore: credential store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Credential(nil), s.items...), nil
}

func (s *CredentialStore) SaveCredential(_ context.Context, credential core.Credential) error {
	if s == nil {
		return fmt.Errorf("memstore: credential store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.PublicKey == credential.PublicKey {
			return fmt.Errorf("memstore: credential: %w", core.ErrConflict)
		}
	}
	s.items = append(s.items, credential)
	return nil
}

func (s *CredentialStore) RevokeCredential(_ context.Context, publicKey string) error {
	if s == nil {
		return fmt.Errorf("memstore: credential store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].PublicKey == publicKey {
			s.items[i].Status = core.CredentialStatusRevoked
			return nil
		}
	}
	return fmt.Errorf("memstore: credential: %w", core.ErrNotFound)
}

var (
	_ core.CredentialStore  = (*CredentialStore)(nil)
	_ core.CredentialIssuer = (*CredentialStore)(nil)
)
