package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-crmsync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// DeliveryLogStore is the persisted webhook audit trail. Rows are only ever
// inserted or purged.
type DeliveryLogStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookLogRecord]
	Now  func() time.Time
}

func NewDeliveryLogStore(db *bun.DB) (*DeliveryLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookLogRecord](db, webhookLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery log repository wiring: %w", err)
		}
	}
	return &DeliveryLogStore{
		db:   db,
		repo: repo,
		Now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DeliveryLogStore) Record(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryLogRecord, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryLogRecord{}, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	if attempt.EventType == "" {
		return core.DeliveryLogRecord{}, fmt.Errorf("sqlstore: delivery event type is required")
	}
	created, err := s.repo.Create(ctx, newWebhookLogRecord(attempt, s.now()))
	if err != nil {
		return core.DeliveryLogRecord{}, translateErr(err, "record delivery")
	}
	return created.toDomain(), nil
}

func (s *DeliveryLogStore) Query(ctx context.Context, filter core.DeliveryLogFilter) (core.DeliveryLogPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryLogPage{}, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	filter = filter.Normalized()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
		repository.SelectPaginate(filter.PageSize, (filter.Page-1)*filter.PageSize),
	}
	if filter.EventType != "" {
		selectors = append(selectors, repository.SelectBy("event_type", "=", filter.EventType))
	}
	switch filter.Outcome {
	case core.DeliveryOutcomeSuccess:
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.succeeded = ?", true)
		}))
	case core.DeliveryOutcomeError:
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.succeeded = ?", false)
		}))
	}
	if filter.DateFrom != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.DateFrom.UTC()))
	}
	if filter.DateTo != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<", filter.DateTo.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.DeliveryLogPage{}, translateErr(err, "query delivery log")
	}
	out := make([]core.DeliveryLogRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return core.DeliveryLogPage{
		Records:  out,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Pages:    core.PageCount(total, filter.PageSize),
	}, nil
}

func (s *DeliveryLogStore) Stats(ctx context.Context) (core.DeliveryStats, error) {
	if s == nil || s.db == nil {
		return core.DeliveryStats{}, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	count := func(where func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
		q := s.db.NewSelect().Model((*webhookLogRecord)(nil))
		if where != nil {
			q = where(q)
		}
		return q.Count(ctx)
	}

	var stats core.DeliveryStats
	var err error
	if stats.Total, err = count(nil); err != nil {
		return core.DeliveryStats{}, translateErr(err, "count deliveries")
	}
	if stats.SuccessCount, err = count(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.succeeded = ?", true)
	}); err != nil {
		return core.DeliveryStats{}, translateErr(err, "count successful deliveries")
	}
	stats.ErrorCount = stats.Total - stats.SuccessCount
	since := s.now().Add(-24 * time.Hour)
	if stats.Last24h, err = count(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.created_at >= ?", since)
	}); err != nil {
		return core.DeliveryStats{}, translateErr(err, "count recent deliveries")
	}
	return stats, nil
}

func (s *DeliveryLogStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	if age <= 0 {
		return 0, fmt.Errorf("sqlstore: purge age must be positive")
	}
	res, err := s.db.NewDelete().
		Model((*webhookLogRecord)(nil)).
		Where("created_at < ?", s.now().Add(-age)).
		Exec(ctx)
	if err != nil {
		return 0, translateErr(err, "purge delivery log")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, translateErr(err, "purge delivery log")
	}
	return int(affected), nil
}

func (s *DeliveryLogStore) EventTypes(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	var types []string
	err := s.db.NewSelect().
		Model((*webhookLogRecord)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.event_type").
		OrderExpr("?TableAlias.event_type ASC").
		Scan(ctx, &types)
	if err != nil {
		return nil, translateErr(err, "list delivery event types")
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}

func (s *DeliveryLogStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
