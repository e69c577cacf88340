// Package gateway fronts the contact and webhook operations with credential
// checks, per-key rate limiting and a response cache, and exposes them over
// HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/cache"
	"github.com/goliatone/go-crmsync/core"
)

type Authenticator interface {
	Validate(ctx context.Context, presented string) error
}

type Limiter interface {
	Consume(ctx context.Context, key string) error
}

type Request struct {
	Operation string
	APIKey    string
	Params    map[string]any
	Cacheable bool
}

type Operation func(ctx context.Context) (any, error)

type Gateway struct {
	Auth     Authenticator
	Limiter  Limiter
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   core.Logger
}

func New(auth Authenticator, limiter Limiter, responses cache.Cache, ttl time.Duration, logger core.Logger) *Gateway {
	return &Gateway{
		Auth:     auth,
		Limiter:  limiter,
		Cache:    responses,
		CacheTTL: ttl,
		Logger:   core.ResolveLogger("crmsync.gateway", nil, logger),
	}
}

// Execute runs op behind the credential check and the rate limiter and
// returns its JSON encoded result. Auth and throttling failures return before
// the cache or op are touched. Cache failures are logged and never fail the
// request.
func (g *Gateway) Execute(ctx context.Context, req Request, op Operation) ([]byte, error) {
	if g == nil || g.Auth == nil {
		return nil, fmt.Errorf("gateway: authenticator is not configured")
	}
	if op == nil {
		return nil, fmt.Errorf("gateway: operation is required")
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if err := g.Auth.Validate(ctx, apiKey); err != nil {
		return nil, err
	}
	if g.Limiter != nil {
		if err := g.Limiter.Consume(ctx, apiKey); err != nil {
			return nil, err
		}
	}

	cacheKey := ""
	if req.Cacheable && g.Cache != nil && g.CacheTTL > 0 {
		cacheKey = cache.Key(req.Operation, req.Params)
		body, ok, err := g.Cache.Get(ctx, cacheKey)
		if err != nil {
			core.LogWithLevel(ctx, g.Logger, "warn", "response cache read failed", map[string]any{
				"operation": req.Operation,
				"error":     err.Error(),
			})
		} else if ok {
			return body, nil
		}
	}

	result, err := op(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, core.NewPersistenceError(err, "gateway: encode response failed")
	}
	if cacheKey != "" {
		if err := g.Cache.Put(ctx, cacheKey, body, g.CacheTTL); err != nil {
			core.LogWithLevel(ctx, g.Logger, "warn", "response cache write failed", map[string]any{
				"operation": req.Operation,
				"error":     err.Error(),
			})
		}
	}
	return body, nil
}
