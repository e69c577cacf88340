// Package memstore holds mutex guarded in-process implementations of the core
// store contracts for single node deployments and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

type state struct {
	mu         sync.Mutex
	now        func() time.Time
	nextID     int64
	contacts   map[int64]core.Contact
	tags       map[int64]core.Tag
	links      map[int64]map[int64]struct{}
	notes      []core.Note
	activities []core.Activity
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *state) timestamp() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

type Stores struct {
	Contacts   *ContactStore
	Tags       *TagStore
	Notes      *NoteStore
	Activities *ActivityStore
}

// NewStores returns stores sharing one dataset. now may be nil.
func NewStores(now func() time.Time) *Stores {
	st := &state{
		now:      now,
		contacts: map[int64]core.Contact{},
		tags:     map[int64]core.Tag{},
		links:    map[int64]map[int64]struct{}{},
	}
	return &Stores{
		Contacts:   &ContactStore{state: st},
		Tags:       &TagStore{state: st},
		Notes:      &NoteStore{state: st},
		Activities: &ActivityStore{state: st},
	}
}

type ContactStore struct {
	*state
}

func (s *ContactStore) Get(_ context.Context, id int64) (core.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return core.Contact{}, fmt.Errorf("memstore: contact %d: %w", id, core.ErrNotFound)
	}
	return s.hydrateLocked(contact), nil
}

func (s *ContactStore) FindByEmail(_ context.Context, email string) (core.Contact, error) {
	email = strings.TrimSpace(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if email != "" && strings.EqualFold(contact.Email, email) {
			return s.hydrateLocked(contact), nil
		}
	}
	return core.Contact{}, fmt.Errorf("memstore: contact email %q: %w", email, core.ErrNotFound)
}

func (s *ContactStore) FindByPhone(_ context.Context, digits string) (core.Contact, error) {
	digits = strings.TrimSpace(digits)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if digits != "" && contact.PhoneDigits == digits {
			return s.hydrateLocked(contact), nil
		}
	}
	return core.Contact{}, fmt.Errorf("memstore: contact phone %q: %w", digits, core.ErrNotFound)
}

func (s *ContactStore) Create(_ context.Context, contact core.Contact) (core.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLocked(contact, 0); err != nil {
		return core.Contact{}, err
	}
	now := s.timestamp()
	contact.ID = s.id()
	contact.Meta = core.CopyStringMap(contact.Meta)
	contact.Tags = nil
	contact.CreatedAt = now
	contact.UpdatedAt = now
	s.contacts[contact.ID] = contact
	return s.hydrateLocked(contact), nil
}

func (s *ContactStore) Update(_ context.Context, contact core.Contact) (core.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.contacts[contact.ID]
	if !ok {
		return core.Contact{}, fmt.Errorf("memstore: contact %d: %w", contact.ID, core.ErrNotFound)
	}
	if err := s.checkUniqueLocked(contact, contact.ID); err != nil {
		return core.Contact{}, err
	}
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = s.timestamp()
	contact.Meta = core.CopyStringMap(contact.Meta)
	contact.Tags = nil
	s.contacts[contact.ID] = contact
	return s.hydrateLocked(contact), nil
}

func (s *ContactStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return fmt.Errorf("memstore: contact %d: %w", id, core.ErrNotFound)
	}
	delete(s.contacts, id)
	delete(s.links, id)
	return nil
}

func (s *ContactStore) List(_ context.Context, filter core.ContactListFilter) (core.ContactPage, error) {
	page, perPage := filter.Page, filter.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]core.Contact, 0, len(s.contacts))
	for _, contact := range s.contacts {
		if search != "" && !strings.Contains(strings.ToLower(contact.Email), search) &&
			!strings.Contains(strings.ToLower(contact.FirstName), search) &&
			!strings.Contains(strings.ToLower(contact.LastName), search) {
			continue
		}
		if filter.TagID > 0 {
			if _, ok := s.links[contact.ID][filter.TagID]; !ok {
				continue
			}
		}
		matched = append(matched, contact)
	}

	desc := !strings.EqualFold(strings.TrimSpace(filter.Order), "ASC")
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return contactLess(matched[j], matched[i], filter.OrderBy)
		}
		return contactLess(matched[i], matched[j], filter.OrderBy)
	})

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	out := make([]core.Contact, 0, end-start)
	for _, contact := range matched[start:end] {
		out = append(out, s.hydrateLocked(contact))
	}
	return core.ContactPage{Total: total, Page: page, PerPage: perPage, Contacts: out}, nil
}

func (s *ContactStore) MetaKeys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, contact := range s.contacts {
		for key := range contact.Meta {
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

func (s *ContactStore) checkUniqueLocked(contact core.Contact, selfID int64) error {
	for id, existing := range s.contacts {
		if id == selfID {
			continue
		}
		if contact.Email != "" && strings.EqualFold(existing.Email, contact.Email) {
			return fmt.Errorf("memstore: email %q: %w", contact.Email, core.ErrConflict)
		}
		if contact.PhoneDigits != "" && existing.PhoneDigits == contact.PhoneDigits {
			return fmt.Errorf("memstore: phone %q: %w", contact.PhoneDigits, core.ErrConflict)
		}
	}
	return nil
}

func (s *state) hydrateLocked(contact core.Contact) core.Contact {
	contact.Meta = core.CopyStringMap(contact.Meta)
	contact.Tags = s.tagsForLocked(contact.ID)
	return contact
}

func (s *state) tagsForLocked(contactID int64) []core.Tag {
	linked := s.links[contactID]
	out := make([]core.Tag, 0, len(linked))
	for tagID := range linked {
		if tag, ok := s.tags[tagID]; ok {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func contactLess(a core.Contact, b core.Contact, orderBy string) bool {
	switch strings.ToLower(strings.TrimSpace(orderBy)) {
	case "email":
		return a.Email < b.Email
	case "first_name":
		return a.FirstName < b.FirstName
	case "last_name":
		return a.LastName < b.LastName
	case "id":
		return a.ID < b.ID
	default:
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

type TagStore struct {
	*state
}

func (s *TagStore) FindByName(_ context.Context, name string) (core.Tag, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range s.tags {
		if tag.Name == name {
			return tag, nil
		}
	}
	return core.Tag{}, fmt.Errorf("memstore: tag %q: %w", name, core.ErrNotFound)
}

func (s *TagStore) Create(_ context.Context, name string) (core.Tag, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range s.tags {
		if tag.Name == name {
			return core.Tag{}, fmt.Errorf("memstore: tag %q: %w", name, core.ErrConflict)
		}
	}
	tag := core.Tag{ID: s.id(), Name: name, CreatedAt: s.timestamp()}
	s.tags[tag.ID] = tag
	return tag, nil
}

func (s *TagStore) Attach(_ context.Context, contactID int64, tagID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[contactID]; !ok {
		return false, fmt.Errorf("memstore: contact %d: %w", contactID, core.ErrNotFound)
	}
	if _, ok := s.tags[tagID]; !ok {
		return false, fmt.Errorf("memstore: tag %d: %w", tagID, core.ErrNotFound)
	}
	linked := s.links[contactID]
	if linked == nil {
		linked = map[int64]struct{}{}
		s.links[contactID] = linked
	}
	if _, ok := linked[tagID]; ok {
		return false, nil
	}
	linked[tagID] = struct{}{}
	return true, nil
}

func (s *TagStore) Detach(_ context.Context, contactID int64, tagID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	linked := s.links[contactID]
	if _, ok := linked[tagID]; !ok {
		return false, nil
	}
	delete(linked, tagID)
	return true, nil
}

func (s *TagStore) ListForContact(_ context.Context, contactID int64) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tagsForLocked(contactID), nil
}

type NoteStore struct {
	*state
}

func (s *NoteStore) AddNote(_ context.Context, note core.Note) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note.ID = s.id()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.timestamp()
	}
	s.notes = append(s.notes, note)
	return note, nil
}

func (s *NoteStore) ListNotes(_ context.Context, contactID int64, limit int) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Note, 0)
	for i := len(s.notes) - 1; i >= 0; i-- {
		if s.notes[i].ContactID != contactID {
			continue
		}
		out = append(out, s.notes[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type ActivityStore struct {
	*state
}

func (s *ActivityStore) AddActivity(_ context.Context, activity core.Activity) (core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = s.id()
	activity.Meta = core.CopyAnyMap(activity.Meta)
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.timestamp()
	}
	s.activities = append(s.activities, activity)
	return activity, nil
}

func (s *ActivityStore) ListActivity(_ context.Context, contactID int64, limit int) ([]core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Activity, 0)
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.activities[i].ContactID != contactID {
			continue
		}
		out = append(out, s.activities[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ core.ContactStore  = (*ContactStore)(nil)
	_ core.TagStore      = (*TagStore)(nil)
	_ core.NoteStore     = (*NoteStore)(nil)
	_ core.ActivityStore = (*ActivityStore)(nil)
)
