package query

import (
	"strings"

	"github.com/goliatone/go-crmsync/core"
)

const (
	TypeGetContact         = "crmsync.query.contact.get"
	TypeContactByPhone     = "crmsync.query.contact.by_phone"
	TypeListContacts       = "crmsync.query.contact.list"
	TypeContactActivity    = "crmsync.query.contact.activity"
	TypeContactNotes       = "crmsync.query.contact.notes"
	TypeCustomFields       = "crmsync.query.contact.custom_fields"
	TypeDeliveryLog        = "crmsync.query.webhook.logs"
	TypeDeliveryStats      = "crmsync.query.webhook.stats"
	TypeDeliveryEventTypes = "crmsync.query.webhook.event_types"
)

type GetContactMessage struct {
	ContactID int64
}

func (GetContactMessage) Type() string { return TypeGetContact }

func (m GetContactMessage) Validate() error {
	if m.ContactID <= 0 {
		return queryValidationError("id", "contact id is required")
	}
	return nil
}

type ContactByPhoneMessage struct {
	Phone string
}

func (ContactByPhoneMessage) Type() string { return TypeContactByPhone }

func (m ContactByPhoneMessage) Validate() error {
	if strings.TrimSpace(m.Phone) == "" {
		return queryValidationError("phone", "phone is required")
	}
	return nil
}

type ListContactsMessage struct {
	Filter core.ContactListFilter
}

func (ListContactsMessage) Type() string { return TypeListContacts }

func (m ListContactsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.TagID < 0 {
		return queryValidationError("tag_id", "tag_id must be >= 0")
	}
	return nil
}

type ContactActivityMessage struct {
	Email string
}

func (ContactActivityMessage) Type() string { return TypeContactActivity }

func (m ContactActivityMessage) Validate() error {
	return validateEmail(m.Email)
}

type ContactNotesMessage struct {
	Email string
}

func (ContactNotesMessage) Type() string { return TypeContactNotes }

func (m ContactNotesMessage) Validate() error {
	return validateEmail(m.Email)
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return queryValidationError("email", "email is required")
	}
	return nil
}

type CustomFieldsMessage struct{}

func (CustomFieldsMessage) Type() string { return TypeCustomFields }

func (CustomFieldsMessage) Validate() error { return nil }

type DeliveryLogMessage struct {
	Filter core.DeliveryLogFilter
}

func (DeliveryLogMessage) Type() string { return TypeDeliveryLog }

func (m DeliveryLogMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PageSize < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	switch m.Filter.Outcome {
	case "", core.DeliveryOutcomeSuccess, core.DeliveryOutcomeError:
	default:
		return queryValidationError("status", "status must be success or error")
	}
	if m.Filter.DateFrom != nil && m.Filter.DateTo != nil && m.Filter.DateTo.Before(*m.Filter.DateFrom) {
		return queryValidationError("date_to", "date_to must not precede date_from")
	}
	return nil
}

type DeliveryStatsMessage struct{}

func (DeliveryStatsMessage) Type() string { return TypeDeliveryStats }

func (DeliveryStatsMessage) Validate() error { return nil }

type DeliveryEventTypesMessage struct{}

func (DeliveryEventTypesMessage) Type() string { return TypeDeliveryEventTypes }

func (DeliveryEventTypesMessage) Validate() error { return nil }
