package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crmsync/core"
	goerrors "github.com/goliatone/go-errors"
)

const DefaultWindow = 60 * time.Second

// WindowStore persists per key counters for discrete windows.
type WindowStore interface {
	// Increment adds one to the counter for (key, windowStart) when the
	// current count is below limit, creating the window when absent. The
	// check and the write happen as one atomic step.
	Increment(ctx context.Context, key string, windowStart time.Time, limit int) (count int, allowed bool, err error)
	Count(ctx context.Context, key string, windowStart time.Time) (int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type ThrottledError struct {
	Key        string
	Limit      int
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: rate limit of %d requests exceeded, retry in %s", e.Limit, e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"limit": e.Limit,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New("Rate limit exceeded. Please try again later.", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimitExceeded).
		WithMetadata(metadata)
}

type FixedWindowLimiter struct {
	Store   WindowStore
	Limit   int
	Window  time.Duration
	Enabled bool
	Now     func() time.Time
}

func NewFixedWindowLimiter(store WindowStore, cfg core.RateLimitConfig) *FixedWindowLimiter {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &FixedWindowLimiter{
		Store:   store,
		Limit:   cfg.Limit,
		Window:  window,
		Enabled: cfg.Enabled,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Allow reports whether a call for key would currently be admitted without
// charging it.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.active() {
		return true, nil
	}
	count, err := l.Store.Count(ctx, WindowKey(key), l.windowStart())
	if err != nil {
		return false, err
	}
	return count < l.Limit, nil
}

// Consume charges one call against key, returning ThrottledError once the
// window is exhausted.
func (l *FixedWindowLimiter) Consume(ctx context.Context, key string) error {
	if !l.active() {
		return nil
	}
	start := l.windowStart()
	_, allowed, err := l.Store.Increment(ctx, WindowKey(key), start, l.Limit)
	if err != nil {
		return err
	}
	if !allowed {
		return ThrottledError{
			Key:        WindowKey(key),
			Limit:      l.Limit,
			RetryAfter: start.Add(l.window()).Sub(l.now()),
		}
	}
	return nil
}

func (l *FixedWindowLimiter) active() bool {
	return l != nil && l.Enabled && l.Store != nil
}

func (l *FixedWindowLimiter) windowStart() time.Time {
	return l.now().Truncate(l.window())
}

func (l *FixedWindowLimiter) window() time.Duration {
	if l != nil && l.Window > 0 {
		return l.Window
	}
	return DefaultWindow
}

func (l *FixedWindowLimiter) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// WindowKey derives the stored counter key from a credential so raw keys
// never reach the window store.
func WindowKey(credential string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(credential)))
	return "rl_" + hex.EncodeToString(sum[:])
}

type windowID struct {
	key   string
	start int64
}

type MemoryWindowStore struct {
	mu     sync.Mutex
	counts map[windowID]int
	// Retain bounds how long past windows are kept before lazy eviction.
	Retain time.Duration
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{counts: map[windowID]int{}, Retain: 2 * DefaultWindow}
}

func (s *MemoryWindowStore) Increment(_ context.Context, key string, windowStart time.Time, limit int) (int, bool, error) {
	if s == nil {
		return 0, false, fmt.Errorf("ratelimit: window store is nil")
	}
	id := windowID{key: key, start: windowStart.UnixNano()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(windowStart)
	count := s.counts[id]
	if count >= limit {
		return count, false, nil
	}
	count++
	s.counts[id] = count
	return count, true, nil
}

func (s *MemoryWindowStore) Count(_ context.Context, key string, windowStart time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("ratelimit: window store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[windowID{key: key, start: windowStart.UnixNano()}], nil
}

func (s *MemoryWindowStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("ratelimit: window store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.counts {
		if id.start < cutoff.UnixNano() {
			delete(s.counts, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryWindowStore) evictLocked(current time.Time) {
	retain := s.Retain
	if retain <= 0 {
		return
	}
	cutoff := current.Add(-retain).UnixNano()
	for id := range s.counts {
		if id.start < cutoff {
			delete(s.counts, id)
		}
	}
}

var _ WindowStore = (*MemoryWindowStore)(nil)
