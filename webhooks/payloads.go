package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

const sampleContactID int64 = 12345

// SamplePayload builds the synthetic payload sent by test deliveries.
func SamplePayload(kind core.EventKind, at time.Time) (core.EventPayload, error) {
	contact := core.ContactSnapshot{
		ContactID: sampleContactID,
		Email:     "john.doe@example.com",
		FirstName: "John",
		LastName:  "Doe",
		Phone:     "+1-555-123-4567",
		Tags:      []string{"Test Tag"},
	}
	switch kind {
	case core.EventContactCreated:
		return core.ContactCreatedPayload{Contact: contact}, nil
	case core.EventContactUpdated:
		return core.ContactUpdatedPayload{Contact: contact, ChangedFields: []string{"first_name", "phone"}}, nil
	case core.EventContactDeleted:
		return core.ContactDeletedPayload{ContactID: sampleContactID, Email: contact.Email}, nil
	case core.EventTagApplied:
		return core.TagAppliedPayload{ContactID: sampleContactID, Email: contact.Email, TagID: 789, TagName: "Test Tag"}, nil
	case core.EventTagRemoved:
		return core.TagRemovedPayload{ContactID: sampleContactID, Email: contact.Email, TagID: 789, TagName: "Test Tag"}, nil
	case core.EventFormSubmitted:
		return core.FormSubmittedPayload{
			ContactID: sampleContactID,
			Email:     contact.Email,
			FormID:    "456",
			FormData: map[string]string{
				"name":    "John Doe",
				"email":   contact.Email,
				"message": "This is a test form submission.",
			},
		}, nil
	case core.EventNoteAdded:
		return core.NoteAddedPayload{
			ContactID: sampleContactID,
			Email:     contact.Email,
			NoteID:    789,
			Content:   "This is a test note.",
			NoteType:  "general",
		}, nil
	case core.EventActivityAdded:
		return core.ActivityAddedPayload{
			ContactID:    sampleContactID,
			Email:        contact.Email,
			ActivityID:   789,
			ActivityType: "email_opened",
			Description:  "Test Email",
			Meta:         map[string]any{"email_id": 456},
		}, nil
	case core.EventEmailSent:
		return core.EmailSentPayload{ContactID: sampleContactID, Email: contact.Email, EmailID: 456, Subject: "Test Email"}, nil
	case core.EventEmailOpened:
		return core.EmailOpenedPayload{ContactID: sampleContactID, Email: contact.Email, EmailID: 456, OpenedAt: at.UTC()}, nil
	case core.EventEmailClicked:
		return core.EmailClickedPayload{
			ContactID: sampleContactID,
			Email:     contact.Email,
			EmailID:   456,
			URL:       "https://example.com/test-link",
			ClickedAt: at.UTC(),
		}, nil
	default:
		return nil, fmt.Errorf("webhooks: unknown event type %q", kind)
	}
}

// DecodePayload restores the typed payload for kind from its JSON encoding.
func DecodePayload(kind core.EventKind, raw []byte) (core.EventPayload, error) {
	switch kind {
	case core.EventContactCreated:
		return decodeAs[core.ContactCreatedPayload](raw)
	case core.EventContactUpdated:
		return decodeAs[core.ContactUpdatedPayload](raw)
	case core.EventContactDeleted:
		return decodeAs[core.ContactDeletedPayload](raw)
	case core.EventTagApplied:
		return decodeAs[core.TagAppliedPayload](raw)
	case core.EventTagRemoved:
		return decodeAs[core.TagRemovedPayload](raw)
	case core.EventFormSubmitted:
		return decodeAs[core.FormSubmittedPayload](raw)
	case core.EventNoteAdded:
		return decodeAs[core.NoteAddedPayload](raw)
	case core.EventActivityAdded:
		return decodeAs[core.ActivityAddedPayload](raw)
	case core.EventEmailSent:
		return decodeAs[core.EmailSentPayload](raw)
	case core.EventEmailOpened:
		return decodeAs[core.EmailOpenedPayload](raw)
	case core.EventEmailClicked:
		return decodeAs[core.EmailClickedPayload](raw)
	default:
		return nil, fmt.Errorf("webhooks: unknown event type %q", kind)
	}
}

func decodeAs[T core.EventPayload](raw []byte) (core.EventPayload, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("webhooks: decode %T: %w", payload, err)
	}
	return payload, nil
}

// encodeBody flattens the payload fields and adds the envelope fields.
func encodeBody(event core.WebhookEvent, pluginVersion string, test bool) ([]byte, error) {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("webhooks: encode payload: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("webhooks: encode payload: %w", err)
	}
	body["event"] = string(event.Type())
	body["site_url"] = event.SiteIdentity
	body["plugin_version"] = pluginVersion
	body["timestamp"] = event.Timestamp.UTC().Format(time.RFC3339)
	if test {
		body["test"] = true
	}
	return json.Marshal(body)
}
