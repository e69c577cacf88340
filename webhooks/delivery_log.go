package webhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

type MemoryDeliveryLog struct {
	mu      sync.RWMutex
	nextID  int64
	records []core.DeliveryLogRecord
	Now     func() time.Time
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryDeliveryLog) Record(_ context.Context, attempt core.DeliveryAttempt) (core.DeliveryLogRecord, error) {
	if l == nil {
		return core.DeliveryLogRecord{}, fmt.Errorf("webhooks: delivery log is nil")
	}
	if strings.TrimSpace(attempt.EventType) == "" {
		return core.DeliveryLogRecord{}, fmt.Errorf("webhooks: event type is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	record := core.DeliveryLogRecord{
		ID:           l.nextID,
		EventType:    attempt.EventType,
		TargetURL:    attempt.TargetURL,
		Payload:      append([]byte(nil), attempt.Payload...),
		ResponseBody: attempt.ResponseBody,
		ErrorMessage: attempt.ErrorMessage,
		Timestamp:    attempt.Timestamp.UTC(),
	}
	if attempt.ResponseCode != nil {
		code := *attempt.ResponseCode
		record.ResponseCode = &code
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now()
	}
	l.records = append(l.records, record)
	return copyRecord(record), nil
}

func (l *MemoryDeliveryLog) Query(_ context.Context, filter core.DeliveryLogFilter) (core.DeliveryLogPage, error) {
	if l == nil {
		return core.DeliveryLogPage{}, fmt.Errorf("webhooks: delivery log is nil")
	}
	filter = filter.Normalized()
	l.mu.RLock()
	matched := make([]core.DeliveryLogRecord, 0, len(l.records))
	for _, record := range l.records {
		if filter.Matches(record) {
			matched = append(matched, record)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	records := make([]core.DeliveryLogRecord, 0, end-start)
	for _, record := range matched[start:end] {
		records = append(records, copyRecord(record))
	}
	return core.DeliveryLogPage{
		Records:  records,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Pages:    core.PageCount(total, filter.PageSize),
	}, nil
}

func (l *MemoryDeliveryLog) Stats(_ context.Context) (core.DeliveryStats, error) {
	if l == nil {
		return core.DeliveryStats{}, fmt.Errorf("webhooks: delivery log is nil")
	}
	cutoff := l.now().Add(-24 * time.Hour)
	l.mu.RLock()
	defer l.mu.RUnlock()
	stats := core.DeliveryStats{Total: len(l.records)}
	for _, record := range l.records {
		if record.Outcome() == core.DeliveryOutcomeSuccess {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
		if !record.Timestamp.Before(cutoff) {
			stats.Last24h++
		}
	}
	return stats, nil
}

func (l *MemoryDeliveryLog) PurgeOlderThan(_ context.Context, age time.Duration) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("webhooks: delivery log is nil")
	}
	if age <= 0 {
		return 0, fmt.Errorf("webhooks: purge age must be positive")
	}
	cutoff := l.now().Add(-age)
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	removed := 0
	for _, record := range l.records {
		if record.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	l.records = kept
	return removed, nil
}

func (l *MemoryDeliveryLog) EventTypes(_ context.Context) ([]string, error) {
	if l == nil {
		return nil, fmt.Errorf("webhooks: delivery log is nil")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, record := range l.records {
		if _, ok := seen[record.EventType]; ok {
			continue
		}
		seen[record.EventType] = struct{}{}
		out = append(out, record.EventType)
	}
	sort.Strings(out)
	return out, nil
}

func (l *MemoryDeliveryLog) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func copyRecord(record core.DeliveryLogRecord) core.DeliveryLogRecord {
	record.Payload = append([]byte(nil), record.Payload...)
	if record.ResponseCode != nil {
		code := *record.ResponseCode
		record.ResponseCode = &code
	}
	return record
}

var _ core.DeliveryLog = (*MemoryDeliveryLog)(nil)
