package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-crmsync/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const tagCacheKeyPrefix = "go-crmsync::tag_by_name::v1"

// CachedTagStore serves tag lookups by name from a read cache. Tags are never
// renamed or deleted, so a cached hit stays valid; misses are not cached.
type CachedTagStore struct {
	base  core.TagStore
	cache repositorycache.CacheService
}

func NewCachedTagStore(base core.TagStore, cacheService repositorycache.CacheService) (*CachedTagStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base tag store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: tag cache service is required")
	}
	return &CachedTagStore{base: base, cache: cacheService}, nil
}

// TagCacheKey returns go-crmsync::tag_by_name::v1::<name> with the trimmed
// name URL-path escaped.
func TagCacheKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("sqlstore: tag name is required")
	}
	return tagCacheKeyPrefix + "::" + url.PathEscape(name), nil
}

func (s *CachedTagStore) FindByName(ctx context.Context, name string) (core.Tag, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tag{}, fmt.Errorf("sqlstore: cached tag store is not configured")
	}
	cacheKey, err := TagCacheKey(name)
	if err != nil {
		return core.Tag{}, err
	}
	normalized := strings.TrimSpace(name)
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Tag, error) {
		return s.base.FindByName(ctx, normalized)
	})
}

func (s *CachedTagStore) Create(ctx context.Context, name string) (core.Tag, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tag{}, fmt.Errorf("sqlstore: cached tag store is not configured")
	}
	tag, err := s.base.Create(ctx, name)
	if err != nil {
		return core.Tag{}, err
	}
	if cacheKey, keyErr := TagCacheKey(tag.Name); keyErr == nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return tag, err
		}
	}
	return tag, nil
}

func (s *CachedTagStore) Attach(ctx context.Context, contactID int64, tagID int64) (bool, error) {
	if s == nil || s.base == nil {
		return false, fmt.Errorf("sqlstore: cached tag store is not configured")
	}
	return s.base.Attach(ctx, contactID, tagID)
}

func (s *CachedTagStore) Detach(ctx context.Context, contactID int64, tagID int64) (bool, error) {
	if s == nil || s.base == nil {
		return false, fmt.Errorf("sqlstore: cached tag store is not configured")
	}
	return s.base.Detach(ctx, contactID, tagID)
}

func (s *CachedTagStore) ListForContact(ctx context.Context, contactID int64) ([]core.Tag, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached tag store is not configured")
	}
	return s.base.ListForContact(ctx, contactID)
}
