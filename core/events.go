package core

import (
	"context"
	"strings"
	"time"
)

type EventKind string

const (
	EventContactCreated EventKind = "contact.created"
	EventContactUpdated EventKind = "contact.updated"
	EventContactDeleted EventKind = "contact.deleted"
	EventTagApplied     EventKind = "tag.applied"
	EventTagRemoved     EventKind = "tag.removed"
	EventFormSubmitted  EventKind = "form.submitted"
	EventNoteAdded      EventKind = "note.added"
	EventActivityAdded  EventKind = "activity.added"
	EventEmailSent      EventKind = "email.sent"
	EventEmailOpened    EventKind = "email.opened"
	EventEmailClicked   EventKind = "email.clicked"
)

func AllEventKinds() []EventKind {
	return []EventKind{
		EventContactCreated,
		EventContactUpdated,
		EventContactDeleted,
		EventTagApplied,
		EventTagRemoved,
		EventFormSubmitted,
		EventNoteAdded,
		EventActivityAdded,
		EventEmailSent,
		EventEmailOpened,
		EventEmailClicked,
	}
}

func ParseEventKind(value string) (EventKind, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	for _, kind := range AllEventKinds() {
		if string(kind) == value {
			return kind, true
		}
	}
	return "", false
}

// EventPayload is implemented only by the payload types in this package, one
// per EventKind.
type EventPayload interface {
	EventKind() EventKind
	sealedEventPayload()
}

type ContactSnapshot struct {
	ContactID int64             `json:"contact_id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type ContactCreatedPayload struct {
	Contact ContactSnapshot `json:"contact"`
}

type ContactUpdatedPayload struct {
	Contact       ContactSnapshot `json:"contact"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
}

type ContactDeletedPayload struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
}

type TagAppliedPayload struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
	TagID     int64  `json:"tag_id"`
	TagName   string `json:"tag_name"`
}

type TagRemovedPayload struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
	TagID     int64  `json:"tag_id"`
	TagName   string `json:"tag_name"`
}

type FormSubmittedPayload struct {
	ContactID int64             `json:"contact_id"`
	Email     string            `json:"email"`
	FormID    string            `json:"form_id"`
	FormData  map[string]string `json:"form_data"`
}

type NoteAddedPayload struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
	NoteID    int64  `json:"note_id"`
	Content   string `json:"content"`
	NoteType  string `json:"note_type"`
	Owner     string `json:"owner,omitempty"`
}

type ActivityAddedPayload struct {
	ContactID    int64          `json:"contact_id"`
	Email        string         `json:"email"`
	ActivityID   int64          `json:"activity_id"`
	ActivityType string         `json:"activity_type"`
	Description  string         `json:"description"`
	Meta         map[string]any `json:"meta,omitempty"`
}

type EmailSentPayload struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
	EmailID   int64  `json:"email_id"`
	Subject   string `json:"subject"`
}

type EmailOpenedPayload struct {
	ContactID int64     `json:"contact_id"`
	Email     string    `json:"email"`
	EmailID   int64     `json:"email_id"`
	OpenedAt  time.Time `json:"opened_at"`
}

type EmailClickedPayload struct {
	ContactID int64     `json:"contact_id"`
	Email     string    `json:"email"`
	EmailID   int64     `json:"email_id"`
	URL       string    `json:"url"`
	ClickedAt time.Time `json:"clicked_at"`
}

func (ContactCreatedPayload) EventKind() EventKind { return EventContactCreated }
func (ContactUpdatedPayload) EventKind() EventKind { return EventContactUpdated }
func (ContactDeletedPayload) EventKind() EventKind { return EventContactDeleted }
func (TagAppliedPayload) EventKind() EventKind     { return EventTagApplied }
func (TagRemovedPayload) EventKind() EventKind     { return EventTagRemoved }
func (FormSubmittedPayload) EventKind() EventKind  { return EventFormSubmitted }
func (NoteAddedPayload) EventKind() EventKind      { return EventNoteAdded }
func (ActivityAddedPayload) EventKind() EventKind  { return EventActivityAdded }
func (EmailSentPayload) EventKind() EventKind      { return EventEmailSent }
func (EmailOpenedPayload) EventKind() EventKind    { return EventEmailOpened }
func (EmailClickedPayload) EventKind() EventKind   { return EventEmailClicked }

func (ContactCreatedPayload) sealedEventPayload() {}
func (ContactUpdatedPayload) sealedEventPayload() {}
func (ContactDeletedPayload) sealedEventPayload() {}
func (TagAppliedPayload) sealedEventPayload()     {}
func (TagRemovedPayload) sealedEventPayload()     {}
func (FormSubmittedPayload) sealedEventPayload()  {}
func (NoteAddedPayload) sealedEventPayload()      {}
func (ActivityAddedPayload) sealedEventPayload()  {}
func (EmailSentPayload) sealedEventPayload()      {}
func (EmailOpenedPayload) sealedEventPayload()    {}
func (EmailClickedPayload) sealedEventPayload()   {}

type WebhookEvent struct {
	Payload      EventPayload
	SiteIdentity string
	Timestamp    time.Time
}

func (e WebhookEvent) Type() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventKind()
}

func NewWebhookEvent(payload EventPayload, site string, at time.Time) WebhookEvent {
	return WebhookEvent{
		Payload:      payload,
		SiteIdentity: strings.TrimSpace(site),
		Timestamp:    at.UTC(),
	}
}

// EventSink receives lifecycle events raised by domain operations. Delivery
// failures are the sink's concern; callers never see them.
type EventSink interface {
	Publish(ctx context.Context, payload EventPayload)
}

type NopEventSink struct{}

func (NopEventSink) Publish(context.Context, EventPayload) {}
