package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/ratelimit"
	"github.com/uptrace/bun"
)

// incrementWindowSQL charges one hit in a single statement. When the window
// is already at the limit the conflict branch updates nothing and no row is
// returned.
const incrementWindowSQL = `INSERT INTO crm_rate_windows (bucket_key, window_start, hits)
VALUES (?, ?, 1)
ON CONFLICT (bucket_key, window_start) DO UPDATE SET hits = crm_rate_windows.hits + 1
WHERE crm_rate_windows.hits < ?
RETURNING hits`

type RateWindowStore struct {
	db *bun.DB
}

func NewRateWindowStore(db *bun.DB) (*RateWindowStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateWindowStore{db: db}, nil
}

func (s *RateWindowStore) Increment(ctx context.Context, key string, windowStart time.Time, limit int) (int, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, fmt.Errorf("sqlstore: rate window store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, false, fmt.Errorf("sqlstore: rate window key is required")
	}
	if limit <= 0 {
		count, err := s.Count(ctx, key, windowStart)
		return count, false, err
	}
	start := windowStart.UTC().UnixMilli()

	var hits int
	err := s.db.NewRaw(incrementWindowSQL, key, start, limit).Scan(ctx, &hits)
	if errors.Is(err, sql.ErrNoRows) {
		count, countErr := s.Count(ctx, key, windowStart)
		return count, false, countErr
	}
	if err != nil {
		return 0, false, translateErr(err, "increment rate window")
	}
	return hits, true, nil
}

func (s *RateWindowStore) Count(ctx context.Context, key string, windowStart time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: rate window store is not configured")
	}
	record := &rateWindowRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.bucket_key = ?", strings.TrimSpace(key)).
		Where("?TableAlias.window_start = ?", windowStart.UTC().UnixMilli()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, translateErr(err, "read rate window")
	}
	return record.Hits, nil
}

func (s *RateWindowStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: rate window store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*rateWindowRecord)(nil)).
		Where("window_start < ?", cutoff.UTC().UnixMilli()).
		Exec(ctx)
	if err != nil {
		return 0, translateErr(err, "purge rate windows")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, translateErr(err, "purge rate windows")
	}
	return int(affected), nil
}

var _ ratelimit.WindowStore = (*RateWindowStore)(nil)
