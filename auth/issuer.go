package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

const KeyPrefix = "gh_"

// KeyIssuer mints and revokes API keys for operators.
type KeyIssuer struct {
	store  core.CredentialIssuer
	Random io.Reader
	Now    func() time.Time
}

func NewKeyIssuer(store core.CredentialIssuer) *KeyIssuer {
	return &KeyIssuer{
		store:  store,
		Random: rand.Reader,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue stores and returns a new active key of the form gh_ plus 32 hex
// characters.
func (i *KeyIssuer) Issue(ctx context.Context) (core.Credential, error) {
	if i == nil || i.store == nil {
		return core.Credential{}, fmt.Errorf("auth: credential issuer is not configured")
	}
	key, err := i.generate()
	if err != nil {
		return core.Credential{}, err
	}
	credential := i.credential(key)
	if err := i.store.SaveCredential(ctx, credential); err != nil {
		return core.Credential{}, core.NewPersistenceError(err, "auth: save credential failed")
	}
	return credential, nil
}

// Register stores an operator supplied key. It reports false when the key is
// already present.
func (i *KeyIssuer) Register(ctx context.Context, key string) (bool, error) {
	if i == nil || i.store == nil {
		return false, fmt.Errorf("auth: credential issuer is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, core.NewValidationError("key", "API key is required")
	}
	if err := i.store.SaveCredential(ctx, i.credential(key)); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return false, nil
		}
		return false, core.NewPersistenceError(err, "auth: save credential failed")
	}
	return true, nil
}

func (i *KeyIssuer) Revoke(ctx context.Context, key string) error {
	if i == nil || i.store == nil {
		return fmt.Errorf("auth: credential issuer is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.NewValidationError("key", "API key is required")
	}
	if err := i.store.RevokeCredential(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewNotFoundError("API key", key)
		}
		return core.NewPersistenceError(err, "auth: revoke credential failed")
	}
	return nil
}

func (i *KeyIssuer) generate() (string, error) {
	source := i.Random
	if source == nil {
		source = rand.Reader
	}
	raw := make([]byte, 16)
	if _, err := io.ReadFull(source, raw); err != nil {
		return "", fmt.Errorf("auth: generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(raw), nil
}

func (i *KeyIssuer) credential(key string) core.Credential {
	return core.Credential{
		PublicKey: key,
		Status:    core.CredentialStatusActive,
		CreatedAt: i.now(),
	}
}

func (i *KeyIssuer) now() time.Time {
	if i.Now != nil {
		return i.Now().UTC()
	}
	return time.Now().UTC()
}
