package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
	"github.com/uptrace/bun"
)

var contactOrderColumns = map[string]string{
	"date_created": "created_at",
	"date_updated": "updated_at",
	"email":        "email",
	"first_name":   "first_name",
	"last_name":    "last_name",
	"id":           "id",
}

type ContactStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewContactStore(db *bun.DB) (*ContactStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ContactStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *ContactStore) Get(ctx context.Context, id int64) (core.Contact, error) {
	if s == nil || s.db == nil {
		return core.Contact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	return s.findOne(ctx, fmt.Sprintf("contact %d", id), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	})
}

func (s *ContactStore) FindByEmail(ctx context.Context, email string) (core.Contact, error) {
	if s == nil || s.db == nil {
		return core.Contact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return core.Contact{}, fmt.Errorf("sqlstore: contact email: %w", core.ErrNotFound)
	}
	return s.findOne(ctx, fmt.Sprintf("contact email %q", email), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
}

func (s *ContactStore) FindByPhone(ctx context.Context, digits string) (core.Contact, error) {
	if s == nil || s.db == nil {
		return core.Contact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	digits = strings.TrimSpace(digits)
	if digits == "" {
		return core.Contact{}, fmt.Errorf("sqlstore: contact phone: %w", core.ErrNotFound)
	}
	return s.findOne(ctx, fmt.Sprintf("contact phone %q", digits), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.phone_digits = ?", digits)
	})
}

func (s *ContactStore) Create(ctx context.Context, contact core.Contact) (core.Contact, error) {
	if s == nil || s.db == nil {
		return core.Contact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	now := s.now().UTC()
	contact.ID = 0
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	contact.CreatedAt = now
	contact.UpdatedAt = now
	record := newContactRecord(contact)
	if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return core.Contact{}, translateErr(err, "create contact %q", contact.Email)
	}
	return record.toDomain(nil), nil
}

func (s *ContactStore) Update(ctx context.Context, contact core.Contact) (core.Contact, error) {
	if s == nil || s.db == nil {
		return core.Contact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	if contact.ID <= 0 {
		return core.Contact{}, fmt.Errorf("sqlstore: contact id is required")
	}
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	contact.UpdatedAt = s.now().UTC()
	record := newContactRecord(contact)
	res, err := s.db.NewUpdate().
		Model(record).
		Column("email", "first_name", "last_name", "phone", "phone_digits", "meta",
			"is_phone_only", "optin_status", "owner", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return core.Contact{}, translateErr(err, "update contact %d", contact.ID)
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		return core.Contact{}, fmt.Errorf("sqlstore: update contact %d: %w", contact.ID, core.ErrNotFound)
	}
	return s.Get(ctx, contact.ID)
}

func (s *ContactStore) Delete(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: contact store is not configured")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*contactRecord)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return translateErr(err, "delete contact %d", id)
		}
		if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
			return fmt.Errorf("sqlstore: delete contact %d: %w", id, core.ErrNotFound)
		}
		for _, model := range []any{(*contactTagRecord)(nil), (*noteRecord)(nil), (*activityRecord)(nil)} {
			if _, err := tx.NewDelete().Model(model).Where("contact_id = ?", id).Exec(ctx); err != nil {
				return translateErr(err, "delete contact %d dependents", id)
			}
		}
		return nil
	})
}

func (s *ContactStore) List(ctx context.Context, filter core.ContactListFilter) (core.ContactPage, error) {
	if s == nil || s.db == nil {
		return core.ContactPage{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	page, perPage := filter.Page, filter.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	column, ok := contactOrderColumns[strings.ToLower(strings.TrimSpace(filter.OrderBy))]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(filter.Order), "ASC") {
		direction = "ASC"
	}

	records := make([]*contactRecord, 0, perPage)
	q := s.db.NewSelect().Model(&records)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(?TableAlias.email) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.first_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.last_name) LIKE ?", pattern)
		})
	}
	if filter.TagID > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM crm_contact_tags AS link WHERE link.contact_id = ?TableAlias.id AND link.tag_id = ?)", filter.TagID)
	}
	total, err := q.
		OrderExpr("?TableAlias.? "+direction, bun.Ident(column)).
		OrderExpr("?TableAlias.id " + direction).
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx)
	if err != nil {
		return core.ContactPage{}, translateErr(err, "list contacts")
	}

	ids := make([]int64, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	tags, err := tagsForContacts(ctx, s.db, ids)
	if err != nil {
		return core.ContactPage{}, err
	}
	contacts := make([]core.Contact, 0, len(records))
	for _, record := range records {
		contacts = append(contacts, record.toDomain(tags[record.ID]))
	}
	return core.ContactPage{Total: total, Page: page, PerPage: perPage, Contacts: contacts}, nil
}

// MetaKeys collects distinct meta keys in Go so the query stays portable
// across the JSON functions of each dialect.
func (s *ContactStore) MetaKeys(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: contact store is not configured")
	}
	var records []*contactRecord
	if err := s.db.NewSelect().Model(&records).Column("id", "meta").Scan(ctx); err != nil {
		return nil, translateErr(err, "list meta keys")
	}
	seen := map[string]struct{}{}
	for _, record := range records {
		for key := range record.Meta {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *ContactStore) findOne(ctx context.Context, label string, where func(*bun.SelectQuery) *bun.SelectQuery) (core.Contact, error) {
	record := &contactRecord{}
	if err := where(s.db.NewSelect().Model(record)).Limit(1).Scan(ctx); err != nil {
		return core.Contact{}, translateErr(err, "%s", label)
	}
	tags, err := tagsForContacts(ctx, s.db, []int64{record.ID})
	if err != nil {
		return core.Contact{}, err
	}
	return record.toDomain(tags[record.ID]), nil
}

func tagsForContacts(ctx context.Context, db bun.IDB, contactIDs []int64) (map[int64][]core.Tag, error) {
	out := make(map[int64][]core.Tag, len(contactIDs))
	if len(contactIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ContactID int64     `bun:"contact_id"`
		ID        int64     `bun:"id"`
		Name      string    `bun:"name"`
		CreatedAt time.Time `bun:"created_at"`
	}
	err := db.NewSelect().
		TableExpr("crm_contact_tags AS link").
		Join("JOIN crm_tags AS ct ON ct.id = link.tag_id").
		ColumnExpr("link.contact_id, ct.id, ct.name, ct.created_at").
		Where("link.contact_id IN (?)", bun.In(contactIDs)).
		OrderExpr("ct.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, translateErr(err, "load contact tags")
	}
	for _, row := range rows {
		out[row.ContactID] = append(out[row.ContactID], core.Tag{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.UTC()})
	}
	return out, nil
}
