package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

func newTestLimiter(limit int, now *time.Time) (*FixedWindowLimiter, *MemoryWindowStore) {
	store := NewMemoryWindowStore()
	limiter := NewFixedWindowLimiter(store, core.RateLimitConfig{Enabled: true, Limit: limit, Window: time.Minute})
	limiter.Now = func() time.Time { return *now }
	return limiter, store
}

func TestFixedWindowLimiter_RejectsAfterLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	limiter, _ := newTestLimiter(3, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Consume(ctx, "gh_key"); err != nil {
			t.Fatalf("call %d should be allowed: %v", i+1, err)
		}
	}
	err := limiter.Consume(ctx, "gh_key")
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 55*time.Second {
		t.Fatalf("expected retry after 55s, got %s", throttled.RetryAfter)
	}
	allowed, err := limiter.Allow(ctx, "gh_key")
	if err != nil || allowed {
		t.Fatalf("expected allow=false once exhausted, got %v %v", allowed, err)
	}
}

func TestFixedWindowLimiter_WindowRolloverAdmitsAgain(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)
	limiter, _ := newTestLimiter(1, &now)
	ctx := context.Background()

	if err := limiter.Consume(ctx, "gh_key"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := limiter.Consume(ctx, "gh_key"); err == nil {
		t.Fatalf("second call in same window should be rejected")
	}
	now = now.Add(2 * time.Second)
	if err := limiter.Consume(ctx, "gh_key"); err != nil {
		t.Fatalf("call in next window should be allowed: %v", err)
	}
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter, _ := newTestLimiter(1, &now)
	ctx := context.Background()

	if err := limiter.Consume(ctx, "gh_a"); err != nil {
		t.Fatalf("key a: %v", err)
	}
	if err := limiter.Consume(ctx, "gh_b"); err != nil {
		t.Fatalf("key b should have its own window: %v", err)
	}
}

func TestFixedWindowLimiter_DisabledTouchesNothing(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter, store := newTestLimiter(1, &now)
	limiter.Enabled = false
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := limiter.Consume(ctx, "gh_key"); err != nil {
			t.Fatalf("disabled limiter rejected call %d: %v", i+1, err)
		}
	}
	count, err := store.Count(ctx, WindowKey("gh_key"), now.Truncate(time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no counters when disabled, got %d", count)
	}
}

func TestFixedWindowLimiter_ConcurrentFirstRequestsCountExactly(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter, store := newTestLimiter(25, &now)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Consume(ctx, "gh_shared")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected++
				return
			}
			accepted++
		}()
	}
	wg.Wait()

	if accepted != 25 || rejected != 15 {
		t.Fatalf("expected 25 accepted and 15 rejected, got %d and %d", accepted, rejected)
	}
	count, _ := store.Count(ctx, WindowKey("gh_shared"), now.Truncate(time.Minute))
	if count != 25 {
		t.Fatalf("expected stored count 25, got %d", count)
	}
}

func TestWindowKey_HidesCredential(t *testing.T) {
	key := WindowKey("gh_secret")
	if strings.Contains(key, "secret") || !strings.HasPrefix(key, "rl_") {
		t.Fatalf("unexpected window key %q", key)
	}
	if WindowKey(" gh_secret ") != key {
		t.Fatalf("expected window key to ignore surrounding whitespace")
	}
}

func TestMemoryWindowStore_PurgeBefore(t *testing.T) {
	store := NewMemoryWindowStore()
	ctx := context.Background()
	old := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := old.Add(time.Hour)
	store.Retain = 0

	if _, _, err := store.Increment(ctx, "k", old, 10); err != nil {
		t.Fatalf("increment old: %v", err)
	}
	if _, _, err := store.Increment(ctx, "k", current, 10); err != nil {
		t.Fatalf("increment current: %v", err)
	}
	removed, err := store.PurgeBefore(ctx, current)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged window, got %d", removed)
	}
}
