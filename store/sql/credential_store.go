package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*apiKeyRecord]
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*apiKeyRecord](db, apiKeyHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{db: db, repo: repo}, nil
}

func (s *CredentialStore) ListCredentials(ctx context.Context) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, translateErr(err, "list credentials")
	}
	out := make([]core.Credential, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *CredentialStore) SaveCredential(ctx context.Context, credential core.Credential) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := strings.TrimSpace(credential.PublicKey)
	if key == "" {
		return fmt.Errorf("sqlstore: credential key is required")
	}
	status := credential.Status
	if status == "" {
		status = core.CredentialStatusActive
	}
	createdAt := credential.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.repo.Create(ctx, &apiKeyRecord{
		PublicKey: key,
		Status:    string(status),
		CreatedAt: createdAt,
	})
	if err != nil {
		return translateErr(err, "save credential")
	}
	return nil
}

func (s *CredentialStore) RevokeCredential(ctx context.Context, publicKey string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*apiKeyRecord)(nil)).
		Set("status = ?", string(core.CredentialStatusRevoked)).
		Where("public_key = ?", strings.TrimSpace(publicKey)).
		Exec(ctx)
	if err != nil {
		return translateErr(err, "revoke credential")
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: revoke credential: %w", core.ErrNotFound)
	}
	return nil
}
