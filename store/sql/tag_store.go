package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
	"github.com/uptrace/bun"
)

type TagStore struct {
	db *bun.DB
}

func NewTagStore(db *bun.DB) (*TagStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TagStore{db: db}, nil
}

func (s *TagStore) FindByName(ctx context.Context, name string) (core.Tag, error) {
	if s == nil || s.db == nil {
		return core.Tag{}, fmt.Errorf("sqlstore: tag store is not configured")
	}
	name = strings.TrimSpace(name)
	record := &tagRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Tag{}, translateErr(err, "tag %q", name)
	}
	return record.toDomain(), nil
}

func (s *TagStore) Create(ctx context.Context, name string) (core.Tag, error) {
	if s == nil || s.db == nil {
		return core.Tag{}, fmt.Errorf("sqlstore: tag store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Tag{}, fmt.Errorf("sqlstore: tag name is required")
	}
	record := &tagRecord{Name: name, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return core.Tag{}, translateErr(err, "create tag %q", name)
	}
	return record.toDomain(), nil
}

// Attach links a tag to a contact and reports whether a new link was written.
func (s *TagStore) Attach(ctx context.Context, contactID int64, tagID int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: tag store is not configured")
	}
	attached := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := requireRow(ctx, tx, (*contactRecord)(nil), contactID, "contact"); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, (*tagRecord)(nil), tagID, "tag"); err != nil {
			return err
		}
		res, err := tx.NewInsert().
			Model(&contactTagRecord{ContactID: contactID, TagID: tagID, CreatedAt: time.Now().UTC()}).
			On("CONFLICT (contact_id, tag_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return translateErr(err, "attach tag %d to contact %d", tagID, contactID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return translateErr(err, "attach tag %d to contact %d", tagID, contactID)
		}
		attached = affected > 0
		return nil
	})
	return attached, err
}

func (s *TagStore) Detach(ctx context.Context, contactID int64, tagID int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: tag store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*contactTagRecord)(nil)).
		Where("contact_id = ?", contactID).
		Where("tag_id = ?", tagID).
		Exec(ctx)
	if err != nil {
		return false, translateErr(err, "detach tag %d from contact %d", tagID, contactID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, translateErr(err, "detach tag %d from contact %d", tagID, contactID)
	}
	return affected > 0, nil
}

func (s *TagStore) ListForContact(ctx context.Context, contactID int64) ([]core.Tag, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: tag store is not configured")
	}
	tags, err := tagsForContacts(ctx, s.db, []int64{contactID})
	if err != nil {
		return nil, err
	}
	if tags[contactID] == nil {
		return []core.Tag{}, nil
	}
	return tags[contactID], nil
}

func requireRow(ctx context.Context, db bun.IDB, model any, id int64, label string) error {
	exists, err := db.NewSelect().Model(model).Where("?TableAlias.id = ?", id).Exists(ctx)
	if err != nil {
		return translateErr(err, "lookup %s %d", label, id)
	}
	if !exists {
		return fmt.Errorf("sqlstore: %s %d: %w", label, id, core.ErrNotFound)
	}
	return nil
}
