package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

const (
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultSweepInterval = 24 * time.Hour
)

// RetentionSweeper purges delivery log records older than MaxAge on a fixed
// interval. It is started by the process owner, never by the dispatcher.
type RetentionSweeper struct {
	Log      core.DeliveryLog
	MaxAge   time.Duration
	Interval time.Duration
	Logger   core.Logger
}

func NewRetentionSweeper(log core.DeliveryLog, cfg core.RetentionConfig, logger core.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		Log:      log,
		MaxAge:   cfg.DeliveryLogMaxAge,
		Interval: cfg.SweepInterval,
		Logger:   core.ResolveLogger("crmsync.retention", nil, logger),
	}
}

func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int, error) {
	if s == nil || s.Log == nil {
		return 0, fmt.Errorf("webhooks: retention sweeper is not configured")
	}
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	removed, err := s.Log.PurgeOlderThan(ctx, maxAge)
	if err != nil {
		core.LogWithLevel(ctx, s.Logger, "error", "delivery log sweep failed", map[string]any{"error": err.Error()})
		return 0, err
	}
	core.LogWithLevel(ctx, s.Logger, "info", "delivery log swept", map[string]any{
		"removed": removed,
		"max_age": maxAge.String(),
	})
	return removed, nil
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	if s == nil || s.Log == nil {
		return fmt.Errorf("webhooks: retention sweeper is not configured")
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	_, _ = s.SweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
