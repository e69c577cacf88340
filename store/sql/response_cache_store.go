package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/cache"
	"github.com/uptrace/bun"
)

// ResponseCacheStore persists cached responses so they survive restarts.
type ResponseCacheStore struct {
	db  *bun.DB
	Now func() time.Time
}

func NewResponseCacheStore(db *bun.DB) (*ResponseCacheStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ResponseCacheStore{db: db, Now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *ResponseCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: response cache store is not configured")
	}
	record := &responseCacheRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.cache_key = ?", strings.TrimSpace(key)).
		Where("?TableAlias.expires_at > ?", s.now()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translateErr(err, "read cache entry")
	}
	return append([]byte(nil), record.Value...), true, nil
}

func (s *ResponseCacheStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: response cache store is not configured")
	}
	if ttl <= 0 {
		return nil
	}
	record := &responseCacheRecord{
		CacheKey:  strings.TrimSpace(key),
		Value:     append([]byte{}, value...),
		ExpiresAt: s.now().Add(ttl),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (cache_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return translateErr(err, "write cache entry")
	}
	return nil
}

// PurgeExpired removes entries whose TTL has elapsed.
func (s *ResponseCacheStore) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: response cache store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*responseCacheRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, translateErr(err, "purge cache entries")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, translateErr(err, "purge cache entries")
	}
	return int(affected), nil
}

func (s *ResponseCacheStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ cache.Cache = (*ResponseCacheStore)(nil)
