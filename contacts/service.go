package contacts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-crmsync/core"
)

const (
	DefaultPerPage       = 10
	MaxPerPage           = 100
	DefaultActivityLimit = 50
	DefaultNotesLimit    = 50
	DefaultNoteType      = "note"

	FormActivityType        = "form_submission"
	FormActivityDescription = "Form submitted via NextJS integration"
)

type ServiceDependencies struct {
	Resolver   *Resolver
	Contacts   core.ContactStore
	Notes      core.NoteStore
	Activities core.ActivityStore
	Events     core.EventSink
	Logger     core.Logger
}

type Service struct {
	resolver   *Resolver
	contacts   core.ContactStore
	notes      core.NoteStore
	activities core.ActivityStore
	events     core.EventSink
	logger     core.Logger
}

func NewService(deps ServiceDependencies) *Service {
	events := deps.Events
	if events == nil {
		events = core.NopEventSink{}
	}
	return &Service{
		resolver:   deps.Resolver,
		contacts:   deps.Contacts,
		notes:      deps.Notes,
		activities: deps.Activities,
		events:     events,
		logger:     core.ResolveLogger("crmsync.contacts", nil, deps.Logger),
	}
}

func (s *Service) Resolver() *Resolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

type SyncResult struct {
	Status    string   `json:"status"`
	ContactID int64    `json:"contact_id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone"`
	Tags      []string `json:"tags"`
	PhoneOnly bool     `json:"is_phone_only"`
	Created   bool     `json:"created"`
}

// QuickSync resolves the identity and returns the canonical contact summary.
func (s *Service) QuickSync(ctx context.Context, identity core.ContactIdentity) (SyncResult, error) {
	if err := s.ready(); err != nil {
		return SyncResult{}, err
	}
	contact, created, err := s.resolver.ResolveOrCreate(ctx, identity)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{
		Status:    "success",
		ContactID: contact.ID,
		Email:     contact.Email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone:     contact.Phone,
		Tags:      nonNilStrings(contact.TagNames()),
		PhoneOnly: contact.IsPhoneOnly,
		Created:   created,
	}, nil
}

func (s *Service) List(ctx context.Context, filter core.ContactListFilter) (core.ContactPage, error) {
	if err := s.ready(); err != nil {
		return core.ContactPage{}, err
	}
	filter = normalizeListFilter(filter)
	page, err := s.contacts.List(ctx, filter)
	if err != nil {
		return core.ContactPage{}, core.NewResolutionFailedError(err, "contacts: list contacts failed")
	}
	if page.Contacts == nil {
		page.Contacts = []core.Contact{}
	}
	return page, nil
}

func normalizeListFilter(filter core.ContactListFilter) core.ContactListFilter {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = DefaultPerPage
	}
	if filter.PerPage > MaxPerPage {
		filter.PerPage = MaxPerPage
	}
	filter.Search = strings.TrimSpace(filter.Search)
	switch strings.ToLower(strings.TrimSpace(filter.OrderBy)) {
	case "email", "first_name", "last_name", "id":
		filter.OrderBy = strings.ToLower(strings.TrimSpace(filter.OrderBy))
	default:
		filter.OrderBy = "date_created"
	}
	if strings.EqualFold(strings.TrimSpace(filter.Order), "ASC") {
		filter.Order = "ASC"
	} else {
		filter.Order = "DESC"
	}
	return filter
}

type ActivityFeed struct {
	ContactID int64           `json:"contact_id"`
	Email     string          `json:"email"`
	Activity  []core.Activity `json:"activity"`
}

// Activity returns the contact's most recent activity, newest first.
func (s *Service) Activity(ctx context.Context, email string) (ActivityFeed, error) {
	if err := s.ready(); err != nil {
		return ActivityFeed{}, err
	}
	contact, err := s.resolver.FindByEmail(ctx, email)
	if err != nil {
		return ActivityFeed{}, err
	}
	items, err := s.activities.ListActivity(ctx, contact.ID, DefaultActivityLimit)
	if err != nil {
		return ActivityFeed{}, core.NewResolutionFailedError(err, "contacts: list activity failed")
	}
	if items == nil {
		items = []core.Activity{}
	}
	return ActivityFeed{ContactID: contact.ID, Email: contact.Email, Activity: items}, nil
}

func (s *Service) AddActivity(ctx context.Context, contact core.Contact, activityType string, description string, meta map[string]any) (core.Activity, error) {
	if err := s.ready(); err != nil {
		return core.Activity{}, err
	}
	activityType = strings.TrimSpace(activityType)
	if activityType == "" {
		return core.Activity{}, core.NewValidationError("type", "activity type is required")
	}
	activity, err := s.activities.AddActivity(ctx, core.Activity{
		ContactID:   contact.ID,
		Type:        activityType,
		Description: strings.TrimSpace(description),
		Meta:        core.CopyAnyMap(meta),
	})
	if err != nil {
		return core.Activity{}, core.NewPersistenceError(err, "contacts: record activity failed")
	}
	s.events.Publish(ctx, core.ActivityAddedPayload{
		ContactID:    contact.ID,
		Email:        contact.Email,
		ActivityID:   activity.ID,
		ActivityType: activity.Type,
		Description:  activity.Description,
		Meta:         core.CopyAnyMap(activity.Meta),
	})
	return activity, nil
}

type NoteFeed struct {
	ContactID int64       `json:"contact_id"`
	Email     string      `json:"email"`
	Notes     []core.Note `json:"notes"`
}

func (s *Service) Notes(ctx context.Context, email string) (NoteFeed, error) {
	if err := s.ready(); err != nil {
		return NoteFeed{}, err
	}
	contact, err := s.resolver.FindByEmail(ctx, email)
	if err != nil {
		return NoteFeed{}, err
	}
	notes, err := s.notes.ListNotes(ctx, contact.ID, DefaultNotesLimit)
	if err != nil {
		return NoteFeed{}, core.NewResolutionFailedError(err, "contacts: list notes failed")
	}
	if notes == nil {
		notes = []core.Note{}
	}
	return NoteFeed{ContactID: contact.ID, Email: contact.Email, Notes: notes}, nil
}

type NoteInput struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

func (s *Service) AddNote(ctx context.Context, email string, input NoteInput) (core.Note, error) {
	if err := s.ready(); err != nil {
		return core.Note{}, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return core.Note{}, core.NewValidationError("content", "note content is required")
	}
	contact, err := s.resolver.FindByEmail(ctx, email)
	if err != nil {
		return core.Note{}, err
	}
	return s.addNote(ctx, contact, input)
}

func (s *Service) addNote(ctx context.Context, contact core.Contact, input NoteInput) (core.Note, error) {
	noteType := strings.TrimSpace(input.Type)
	if noteType == "" {
		noteType = DefaultNoteType
	}
	note, err := s.notes.AddNote(ctx, core.Note{
		ContactID: contact.ID,
		Content:   strings.TrimSpace(input.Content),
		Type:      noteType,
		Owner:     strings.TrimSpace(input.Owner),
	})
	if err != nil {
		return core.Note{}, core.NewPersistenceError(err, "contacts: save note failed")
	}
	s.events.Publish(ctx, core.NoteAddedPayload{
		ContactID: contact.ID,
		Email:     contact.Email,
		NoteID:    note.ID,
		Content:   note.Content,
		NoteType:  note.Type,
		Owner:     note.Owner,
	})
	return note, nil
}

type FormResult struct {
	Status     string `json:"status"`
	ContactID  int64  `json:"contact_id"`
	Email      string `json:"email"`
	ActivityID int64  `json:"activity_id"`
	NoteID     int64  `json:"note_id"`
	Created    bool   `json:"created"`
}

// SubmitForm ingests a form post: it resolves the contact from the form data,
// applies tags, stores custom fields as meta, and records the submission as
// activity plus an audit note before raising form.submitted.
func (s *Service) SubmitForm(ctx context.Context, submission core.FormSubmission) (FormResult, error) {
	if err := s.ready(); err != nil {
		return FormResult{}, err
	}
	formID := strings.TrimSpace(submission.FormID)
	data := core.CopyStringMap(submission.Data)
	identity := core.ContactIdentity{
		Email:     data["email"],
		Phone:     data["phone"],
		FirstName: data["first_name"],
		LastName:  data["last_name"],
		Tags:      submission.Tags,
		Meta:      core.CopyStringMap(submission.CustomFields),
	}
	if !identity.HasEmail() && !identity.HasPhone() {
		return FormResult{}, core.NewValidationError("data", "form data must include email or phone")
	}

	contact, created, err := s.resolver.ResolveOrCreate(ctx, identity)
	if err != nil {
		return FormResult{}, err
	}

	activity, err := s.AddActivity(ctx, contact, FormActivityType, FormActivityDescription, map[string]any{
		"form_id":   formID,
		"form_data": data,
	})
	if err != nil {
		return FormResult{}, err
	}
	note, err := s.addNote(ctx, contact, NoteInput{
		Content: formNoteContent(formID, data),
		Type:    FormActivityType,
	})
	if err != nil {
		return FormResult{}, err
	}

	core.LogWithLevel(ctx, s.logger, "info", "form submission recorded", map[string]any{
		"contact_id": contact.ID,
		"form_id":    formID,
		"created":    created,
	})
	s.events.Publish(ctx, core.FormSubmittedPayload{
		ContactID: contact.ID,
		Email:     contact.Email,
		FormID:    formID,
		FormData:  data,
	})
	return FormResult{
		Status:     "success",
		ContactID:  contact.ID,
		Email:      contact.Email,
		ActivityID: activity.ID,
		NoteID:     note.ID,
		Created:    created,
	}, nil
}

func formNoteContent(formID string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	if formID == "" {
		b.WriteString("Form submitted")
	} else {
		fmt.Fprintf(&b, "Form %s submitted", formID)
	}
	for _, key := range keys {
		fmt.Fprintf(&b, "\n%s: %s", key, data[key])
	}
	return b.String()
}

type CustomField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CustomFields lists the distinct meta keys known to the contact store.
func (s *Service) CustomFields(ctx context.Context) ([]CustomField, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	keys, err := s.contacts.MetaKeys(ctx)
	if err != nil {
		return nil, core.NewResolutionFailedError(err, "contacts: list custom fields failed")
	}
	out := make([]CustomField, 0, len(keys))
	for _, key := range keys {
		out = append(out, CustomField{ID: key, Name: fieldLabel(key), Type: "text"})
	}
	return out, nil
}

func fieldLabel(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func (s *Service) Get(ctx context.Context, id int64) (core.Contact, error) {
	if err := s.ready(); err != nil {
		return core.Contact{}, err
	}
	return s.resolver.Get(ctx, id)
}

func (s *Service) FindByPhone(ctx context.Context, phone string) (core.Contact, error) {
	if err := s.ready(); err != nil {
		return core.Contact{}, err
	}
	return s.resolver.FindByPhone(ctx, phone)
}

func (s *Service) Update(ctx context.Context, id int64, patch core.ContactPatch) (core.Contact, error) {
	if err := s.ready(); err != nil {
		return core.Contact{}, err
	}
	return s.resolver.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.resolver.Delete(ctx, id)
}

func (s *Service) ApplyTags(ctx context.Context, id int64, names []string) ([]core.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.resolver.ApplyTags(ctx, id, names)
}

func (s *Service) RemoveTags(ctx context.Context, id int64, names []string) ([]core.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.resolver.RemoveTags(ctx, id, names)
}

func (s *Service) ready() error {
	if s == nil || s.resolver == nil || s.contacts == nil || s.notes == nil || s.activities == nil {
		return fmt.Errorf("contacts: service is not configured")
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
