package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/goliatone/go-crmsync/core"
)

// KeyValidator checks a presented API key against the issued credential set.
type KeyValidator struct {
	store core.CredentialStore
}

func NewKeyValidator(store core.CredentialStore) *KeyValidator {
	return &KeyValidator{store: store}
}

// Validate returns nil when presented matches an active credential. Missing
// input, an empty credential set and an unmatched key are reported with
// distinct text codes.
func (v *KeyValidator) Validate(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return core.NewAuthenticationError("API key is required", core.ErrorMissingAPIKey)
	}
	if v == nil || v.store == nil {
		return core.NewAuthenticationError("No API keys configured", core.ErrorNoAPIKeys)
	}

	credentials, err := v.store.ListCredentials(ctx)
	if err != nil {
		return core.NewPersistenceError(err, "auth: load credentials failed")
	}
	if len(credentials) == 0 {
		return core.NewAuthenticationError("No API keys configured", core.ErrorNoAPIKeys)
	}

	matched := false
	for _, credential := range credentials {
		if !credential.Active() {
			continue
		}
		if constantTimeEqual(credential.PublicKey, presented) {
			matched = true
		}
	}
	if !matched {
		return core.NewAuthenticationError("Invalid API key", core.ErrorInvalidAPIKey)
	}
	return nil
}

func constantTimeEqual(a string, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
