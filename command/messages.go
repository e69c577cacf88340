package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
)

const (
	TypeResolveContact   = "crmsync.command.contact.resolve"
	TypeUpdateContact    = "crmsync.command.contact.update"
	TypeDeleteContact    = "crmsync.command.contact.delete"
	TypeApplyTags        = "crmsync.command.contact.tags.apply"
	TypeRemoveTags       = "crmsync.command.contact.tags.remove"
	TypeAddNote          = "crmsync.command.contact.note.add"
	TypeSubmitForm       = "crmsync.command.form.submit"
	TypeDispatchEvent    = "crmsync.command.webhook.dispatch"
	TypeSendTestWebhook  = "crmsync.command.webhook.test"
	TypePurgeDeliveryLog = "crmsync.command.webhook.logs.purge"
)

type ResolveContactMessage struct {
	Identity core.ContactIdentity
}

func (ResolveContactMessage) Type() string { return TypeResolveContact }

func (m ResolveContactMessage) Validate() error {
	if !m.Identity.HasEmail() && !m.Identity.HasPhone() {
		return commandValidationError("identity", "email or phone is required")
	}
	return nil
}

type UpdateContactMessage struct {
	ContactID int64
	Patch     core.ContactPatch
}

func (UpdateContactMessage) Type() string { return TypeUpdateContact }

func (m UpdateContactMessage) Validate() error {
	if m.ContactID <= 0 {
		return commandValidationError("id", "contact id is required")
	}
	if m.Patch.Empty() {
		return commandValidationError("patch", "at least one field must be provided")
	}
	return nil
}

type DeleteContactMessage struct {
	ContactID int64
}

func (DeleteContactMessage) Type() string { return TypeDeleteContact }

func (m DeleteContactMessage) Validate() error {
	if m.ContactID <= 0 {
		return commandValidationError("id", "contact id is required")
	}
	return nil
}

type ApplyTagsMessage struct {
	ContactID int64
	Tags      []string
}

func (ApplyTagsMessage) Type() string { return TypeApplyTags }

func (m ApplyTagsMessage) Validate() error {
	return validateTagMessage(m.ContactID, m.Tags)
}

type RemoveTagsMessage struct {
	ContactID int64
	Tags      []string
}

func (RemoveTagsMessage) Type() string { return TypeRemoveTags }

func (m RemoveTagsMessage) Validate() error {
	return validateTagMessage(m.ContactID, m.Tags)
}

func validateTagMessage(contactID int64, tags []string) error {
	if contactID <= 0 {
		return commandValidationError("id", "contact id is required")
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) != "" {
			return nil
		}
	}
	return commandValidationError("tags", "at least one tag is required")
}

type AddNoteMessage struct {
	Email string
	Note  contacts.NoteInput
}

func (AddNoteMessage) Type() string { return TypeAddNote }

func (m AddNoteMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	if strings.TrimSpace(m.Note.Content) == "" {
		return commandValidationError("content", "note content is required")
	}
	return nil
}

type SubmitFormMessage struct {
	Submission core.FormSubmission
}

func (SubmitFormMessage) Type() string { return TypeSubmitForm }

func (m SubmitFormMessage) Validate() error {
	if len(m.Submission.Data) == 0 {
		return commandValidationError("data", "form data is required")
	}
	return nil
}

type DispatchEventMessage struct {
	Payload core.EventPayload
}

func (DispatchEventMessage) Type() string { return TypeDispatchEvent }

func (m DispatchEventMessage) Validate() error {
	if m.Payload == nil {
		return commandValidationError("payload", "event payload is required")
	}
	return nil
}

type SendTestWebhookMessage struct {
	Event string
}

func (SendTestWebhookMessage) Type() string { return TypeSendTestWebhook }

func (m SendTestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Event) == "" {
		return commandValidationError("event", "event type is required")
	}
	if _, ok := core.ParseEventKind(m.Event); !ok {
		return commandValidationError("event", "unknown event type")
	}
	return nil
}

type PurgeDeliveryLogMessage struct {
	MaxAge time.Duration
}

func (PurgeDeliveryLogMessage) Type() string { return TypePurgeDeliveryLog }

func (m PurgeDeliveryLogMessage) Validate() error {
	if m.MaxAge <= 0 {
		return commandValidationError("max_age", "max age must be positive")
	}
	return nil
}
