package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

func newContactRecord(contact core.Contact) *contactRecord {
	record := &contactRecord{
		ID:          contact.ID,
		Email:       strings.TrimSpace(contact.Email),
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Phone:       contact.Phone,
		Meta:        core.CopyStringMap(contact.Meta),
		IsPhoneOnly: contact.IsPhoneOnly,
		OptinStatus: contact.OptinStatus,
		Owner:       contact.Owner,
		CreatedAt:   contact.CreatedAt,
		UpdatedAt:   contact.UpdatedAt,
	}
	if digits := strings.TrimSpace(contact.PhoneDigits); digits != "" {
		record.PhoneDigits = &digits
	}
	return record
}

func (r *contactRecord) toDomain(tags []core.Tag) core.Contact {
	contact := core.Contact{
		ID:          r.ID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Phone:       r.Phone,
		Tags:        tags,
		Meta:        core.CopyStringMap(r.Meta),
		IsPhoneOnly: r.IsPhoneOnly,
		OptinStatus: r.OptinStatus,
		Owner:       r.Owner,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.PhoneDigits != nil {
		contact.PhoneDigits = *r.PhoneDigits
	}
	if contact.Tags == nil {
		contact.Tags = []core.Tag{}
	}
	return contact
}

func (r *tagRecord) toDomain() core.Tag {
	return core.Tag{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
}

func (r *noteRecord) toDomain() core.Note {
	return core.Note{
		ID:        r.ID,
		ContactID: r.ContactID,
		Content:   r.Content,
		Type:      r.Type,
		Owner:     r.Owner,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r *activityRecord) toDomain() core.Activity {
	return core.Activity{
		ID:          r.ID,
		ContactID:   r.ContactID,
		Type:        r.Type,
		Description: r.Description,
		Meta:        core.CopyAnyMap(r.Meta),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r *apiKeyRecord) toDomain() core.Credential {
	return core.Credential{
		PublicKey: r.PublicKey,
		Status:    core.CredentialStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func newWebhookLogRecord(attempt core.DeliveryAttempt, now time.Time) *webhookLogRecord {
	ts := attempt.Timestamp.UTC()
	if ts.IsZero() {
		ts = now.UTC()
	}
	record := &webhookLogRecord{
		EventType:    strings.TrimSpace(attempt.EventType),
		WebhookURL:   strings.TrimSpace(attempt.TargetURL),
		Payload:      append([]byte(nil), attempt.Payload...),
		ResponseBody: attempt.ResponseBody,
		ErrorMessage: attempt.ErrorMessage,
		Succeeded:    core.OutcomeOf(attempt.ResponseCode, attempt.ErrorMessage) == core.DeliveryOutcomeSuccess,
		CreatedAt:    ts,
	}
	if attempt.ResponseCode != nil {
		code := *attempt.ResponseCode
		record.ResponseCode = &code
	}
	if record.Payload == nil {
		record.Payload = []byte{}
	}
	return record
}

func (r *webhookLogRecord) toDomain() core.DeliveryLogRecord {
	out := core.DeliveryLogRecord{
		ID:           r.ID,
		EventType:    r.EventType,
		TargetURL:    r.WebhookURL,
		Payload:      append([]byte(nil), r.Payload...),
		ResponseBody: r.ResponseBody,
		ErrorMessage: r.ErrorMessage,
		Timestamp:    r.CreatedAt.UTC(),
	}
	if r.ResponseCode != nil {
		code := *r.ResponseCode
		out.ResponseCode = &code
	}
	return out
}

// translateErr maps driver level failures onto the core sentinels the
// services branch on.
func translateErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlstore: %s: %w", prefix, core.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("sqlstore: %s: %w", prefix, core.ErrConflict)
	default:
		return fmt.Errorf("sqlstore: %s: %w", prefix, err)
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
