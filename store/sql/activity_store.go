package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) AddActivity(ctx context.Context, activity core.Activity) (core.Activity, error) {
	if s == nil || s.repo == nil {
		return core.Activity{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	createdAt := activity.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &activityRecord{
		ContactID:   activity.ContactID,
		Type:        strings.TrimSpace(activity.Type),
		Description: activity.Description,
		Meta:        core.CopyAnyMap(activity.Meta),
		CreatedAt:   createdAt,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Activity{}, translateErr(err, "add activity for contact %d", activity.ContactID)
	}
	return created.toDomain(), nil
}

// ListActivity returns the newest entries first.
func (s *ActivityStore) ListActivity(ctx context.Context, contactID int64, limit int) ([]core.Activity, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: activity store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("contact_id", "=", strconv.FormatInt(contactID, 10)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, translateErr(err, "list activity for contact %d", contactID)
	}
	out := make([]core.Activity, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

type NoteStore struct {
	db   *bun.DB
	repo repository.Repository[*noteRecord]
}

func NewNoteStore(db *bun.DB) (*NoteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*noteRecord](db, noteHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid note repository wiring: %w", err)
		}
	}
	return &NoteStore{db: db, repo: repo}, nil
}

func (s *NoteStore) AddNote(ctx context.Context, note core.Note) (core.Note, error) {
	if s == nil || s.repo == nil {
		return core.Note{}, fmt.Errorf("sqlstore: note store is not configured")
	}
	createdAt := note.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &noteRecord{
		ContactID: note.ContactID,
		Content:   note.Content,
		Type:      strings.TrimSpace(note.Type),
		Owner:     strings.TrimSpace(note.Owner),
		CreatedAt: createdAt,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Note{}, translateErr(err, "add note for contact %d", note.ContactID)
	}
	return created.toDomain(), nil
}

func (s *NoteStore) ListNotes(ctx context.Context, contactID int64, limit int) ([]core.Note, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: note store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("contact_id", "=", strconv.FormatInt(contactID, 10)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, translateErr(err, "list notes for contact %d", contactID)
	}
	out := make([]core.Note, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
