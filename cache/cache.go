// Package cache provides response caching keyed by operation name and
// canonicalized request parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const DefaultMaxEntries = 1000

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value until ttl elapses. A ttl of zero or less is a no-op.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key derives a deterministic cache key. Maps are serialized with sorted
// keys at every depth so parameter order never changes the result.
func Key(operation string, params map[string]any) string {
	operation = strings.TrimSpace(operation)
	var b strings.Builder
	writeCanonical(&b, params)
	sum := sha256.Sum256([]byte(b.String()))
	return "crmsync:" + operation + ":" + hex.EncodeToString(sum[:])
}

func writeCanonical(b *strings.Builder, value any) {
	switch typed := value.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			encoded, _ := json.Marshal(key)
			b.Write(encoded)
			b.WriteByte(':')
			writeCanonical(b, typed[key])
		}
		b.WriteByte('}')
	case map[string]string:
		converted := make(map[string]any, len(typed))
		for key, item := range typed {
			converted[key] = item
		}
		writeCanonical(b, converted)
	case []any:
		b.WriteByte('[')
		for i, item := range typed {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprint(typed))
			return
		}
		b.Write(encoded)
	}
}

var errMiss = errors.New("cache: miss")

// ServiceCache keeps responses in a read-through repositorycache service.
// Every entry shares the TTL the service was built with.
type ServiceCache struct {
	service repositorycache.CacheService
}

// New builds a sturdyc backed response cache holding at most maxEntries
// responses for ttl. A ttl of zero or less disables caching and returns nil.
func New(ttl time.Duration, maxEntries int) (*ServiceCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	config := repositorycache.DefaultConfig()
	config.TTL = ttl
	config.Capacity = maxEntries
	config.NumShards = min(config.NumShards, maxEntries)
	config.EarlyRefresh = nil
	config.MissingRecordStorage = false
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("cache: build service: %w", err)
	}
	return NewServiceCache(service), nil
}

func NewServiceCache(service repositorycache.CacheService) *ServiceCache {
	return &ServiceCache{service: service}
}

// Get never populates the cache: a miss surfaces as errMiss from the fetch
// function, which the service does not store.
func (c *ServiceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.service == nil {
		return nil, false, fmt.Errorf("cache: service is nil")
	}
	value, err := repositorycache.GetOrFetch(ctx, c.service, key, func(context.Context) ([]byte, error) {
		return nil, errMiss
	})
	if errors.Is(err, errMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return append([]byte(nil), value...), true, nil
}

// Put replaces any stored value for key. The service TTL applies; ttl only
// gates whether the value is stored at all.
func (c *ServiceCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.service == nil {
		return fmt.Errorf("cache: service is nil")
	}
	if ttl <= 0 {
		return nil
	}
	if err := c.service.Delete(ctx, key); err != nil {
		return err
	}
	stored := append([]byte(nil), value...)
	_, err := repositorycache.GetOrFetch(ctx, c.service, key, func(context.Context) ([]byte, error) {
		return stored, nil
	})
	return err
}

func (c *ServiceCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.service == nil {
		return nil
	}
	return c.service.Delete(ctx, key)
}

var _ Cache = (*ServiceCache)(nil)
