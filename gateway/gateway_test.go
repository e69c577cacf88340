package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-crmsync/cache"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/ratelimit"
)

type stubAuthenticator struct {
	err   error
	calls int
}

func (s *stubAuthenticator) Validate(context.Context, string) error {
	s.calls++
	return s.err
}

type stubLimiter struct {
	err  error
	keys []string
}

func (s *stubLimiter) Consume(_ context.Context, key string) error {
	s.keys = append(s.keys, key)
	return s.err
}

type failingCache struct {
	gets int
	puts int
}

func (c *failingCache) Get(context.Context, string) ([]byte, bool, error) {
	c.gets++
	return nil, false, errors.New("cache offline")
}

func (c *failingCache) Put(context.Context, string, []byte, time.Duration) error {
	c.puts++
	return errors.New("cache offline")
}

func countingOp(calls *int, result any) Operation {
	return func(context.Context) (any, error) {
		*calls++
		return result, nil
	}
}

func TestGatewayExecute_AuthFailureShortCircuits(t *testing.T) {
	auth := &stubAuthenticator{err: core.NewAuthenticationError("API key is required", core.ErrorMissingAPIKey)}
	limiter := &stubLimiter{}
	gw := New(auth, limiter, newResponses(t), time.Minute, nil)

	calls := 0
	_, err := gw.Execute(context.Background(), Request{Operation: "contacts", Cacheable: true}, countingOp(&calls, "ok"))
	if !core.IsErrorCode(err, core.ErrorMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if len(limiter.keys) != 0 {
		t.Fatalf("expected limiter to be skipped, got %v", limiter.keys)
	}
	if calls != 0 {
		t.Fatalf("expected operation to be skipped")
	}
}

func TestGatewayExecute_ThrottledRequestSkipsOperation(t *testing.T) {
	limiter := &stubLimiter{err: ratelimit.ThrottledError{Limit: 1, RetryAfter: time.Second}}
	gw := New(&stubAuthenticator{}, limiter, nil, 0, nil)

	calls := 0
	_, err := gw.Execute(context.Background(), Request{Operation: "verify", APIKey: " key-1 "}, countingOp(&calls, "ok"))
	var throttled ratelimit.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected operation to be skipped")
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "key-1" {
		t.Fatalf("expected trimmed key to be charged, got %v", limiter.keys)
	}
}

func TestGatewayExecute_CachesCacheableResults(t *testing.T) {
	gw := New(&stubAuthenticator{}, &stubLimiter{}, newResponses(t), time.Minute, nil)
	req := Request{Operation: "contacts", APIKey: "k", Params: map[string]any{"page": 1}, Cacheable: true}

	calls := 0
	op := countingOp(&calls, map[string]int{"total": 3})
	first, err := gw.Execute(context.Background(), req, op)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second, err := gw.Execute(context.Background(), req, op)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one operation call, got %d", calls)
	}
	if string(first) != `{"total":3}` || string(second) != string(first) {
		t.Fatalf("unexpected bodies: %s / %s", first, second)
	}

	req.Params = map[string]any{"page": 2}
	if _, err := gw.Execute(context.Background(), req, op); err != nil {
		t.Fatalf("third execute: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected different params to miss the cache, got %d calls", calls)
	}
}

func TestGatewayExecute_NonCacheableAlwaysRuns(t *testing.T) {
	gw := New(&stubAuthenticator{}, nil, newResponses(t), time.Minute, nil)
	calls := 0
	for i := 0; i < 2; i++ {
		if _, err := gw.Execute(context.Background(), Request{Operation: "sync", APIKey: "k"}, countingOp(&calls, "ok")); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected two operation calls, got %d", calls)
	}
}

func TestGatewayExecute_CacheFailuresDoNotFailRequest(t *testing.T) {
	responses := &failingCache{}
	gw := New(&stubAuthenticator{}, nil, responses, time.Minute, nil)

	calls := 0
	body, err := gw.Execute(context.Background(), Request{Operation: "fields", APIKey: "k", Cacheable: true}, countingOp(&calls, []string{"a"}))
	if err != nil {
		t.Fatalf("expected cache failure to be tolerated, got %v", err)
	}
	if string(body) != `["a"]` {
		t.Fatalf("unexpected body %s", body)
	}
	if responses.gets != 1 || responses.puts != 1 {
		t.Fatalf("expected one get and one put, got %d/%d", responses.gets, responses.puts)
	}
}

func TestGatewayExecute_OperationErrorIsNotCached(t *testing.T) {
	responses := newResponses(t)
	gw := New(&stubAuthenticator{}, nil, responses, time.Minute, nil)

	_, err := gw.Execute(context.Background(), Request{Operation: "contact", APIKey: "k", Cacheable: true}, func(context.Context) (any, error) {
		return nil, core.NewNotFoundError("Contact", "7")
	})
	if !core.IsErrorCode(err, core.ErrorNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, found, _ := responses.Get(context.Background(), cache.Key("contact", nil)); found {
		t.Fatalf("expected failed operation not to be cached")
	}
}

func TestGatewayExecute_RequiresAuthenticator(t *testing.T) {
	gw := New(nil, nil, nil, 0, nil)
	if _, err := gw.Execute(context.Background(), Request{}, countingOp(new(int), nil)); err == nil {
		t.Fatalf("expected error without authenticator")
	}
}

func newResponses(t *testing.T) *cache.ServiceCache {
	t.Helper()
	responses, err := cache.New(time.Minute, 10)
	if err != nil {
		t.Fatalf("response cache: %v", err)
	}
	return responses
}
