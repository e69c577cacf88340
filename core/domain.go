package core

import (
	"strings"
	"time"
)

type CredentialStatus string

const (
	CredentialStatusActive  CredentialStatus = "active"
	CredentialStatusRevoked CredentialStatus = "revoked"
)

type Credential struct {
	PublicKey string
	Status    CredentialStatus
	CreatedAt time.Time
}

func (c Credential) Active() bool {
	return c.Status == CredentialStatusActive
}

type ContactIdentity struct {
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func (i ContactIdentity) HasEmail() bool {
	return strings.TrimSpace(i.Email) != ""
}

func (i ContactIdentity) HasPhone() bool {
	return strings.TrimSpace(i.Phone) != ""
}

type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID          int64             `json:"id"`
	Email       string            `json:"email"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Phone       string            `json:"phone"`
	PhoneDigits string            `json:"-"`
	Tags        []Tag             `json:"tags"`
	Meta        map[string]string `json:"meta"`
	IsPhoneOnly bool              `json:"is_phone_only"`
	OptinStatus string            `json:"optin_status,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"date_created"`
	UpdatedAt   time.Time         `json:"date_updated"`
}

func (c Contact) TagNames() []string {
	if len(c.Tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		out = append(out, tag.Name)
	}
	return out
}

func (c Contact) Snapshot() ContactSnapshot {
	return ContactSnapshot{
		ContactID: c.ID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Tags:      c.TagNames(),
		Meta:      CopyStringMap(c.Meta),
	}
}

// ContactPatch carries partial updates. Empty strings leave the stored value
// untouched.
type ContactPatch struct {
	Email       string            `json:"email,omitempty"`
	FirstName   string            `json:"first_name,omitempty"`
	LastName    string            `json:"last_name,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	OptinStatus string            `json:"optin_status,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

func (p ContactPatch) Empty() bool {
	return strings.TrimSpace(p.Email) == "" &&
		strings.TrimSpace(p.FirstName) == "" &&
		strings.TrimSpace(p.LastName) == "" &&
		strings.TrimSpace(p.Phone) == "" &&
		strings.TrimSpace(p.OptinStatus) == "" &&
		strings.TrimSpace(p.Owner) == "" &&
		len(p.Meta) == 0
}

type ContactListFilter struct {
	Page    int
	PerPage int
	Search  string
	TagID   int64
	OrderBy string
	Order   string
}

type ContactPage struct {
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Contacts []Contact `json:"contacts"`
}

type Note struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"date_created"`
}

type Activity struct {
	ID          int64          `json:"id"`
	ContactID   int64          `json:"contact_id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"timestamp"`
}

type FormSubmission struct {
	FormID       string            `json:"form_id"`
	Data         map[string]string `json:"data"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

type DeliveryOutcome string

const (
	DeliveryOutcomeSuccess DeliveryOutcome = "success"
	DeliveryOutcomeError   DeliveryOutcome = "error"
)

// DeliveryAttempt is the input to DeliveryLog.Record.
type DeliveryAttempt struct {
	EventType    string
	TargetURL    string
	Payload      []byte
	ResponseCode *int
	ResponseBody string
	ErrorMessage string
	Timestamp    time.Time
}

type DeliveryLogRecord struct {
	ID           int64     `json:"id"`
	EventType    string    `json:"event_type"`
	TargetURL    string    `json:"webhook_url"`
	Payload      []byte    `json:"payload"`
	ResponseCode *int      `json:"response_code,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (r DeliveryLogRecord) Outcome() DeliveryOutcome {
	return OutcomeOf(r.ResponseCode, r.ErrorMessage)
}

// OutcomeOf is success only when no error was recorded and the status is 2xx.
func OutcomeOf(code *int, errorMessage string) DeliveryOutcome {
	if strings.TrimSpace(errorMessage) != "" || code == nil {
		return DeliveryOutcomeError
	}
	if *code >= 200 && *code < 300 {
		return DeliveryOutcomeSuccess
	}
	return DeliveryOutcomeError
}

type DeliveryLogFilter struct {
	Page      int
	PageSize  int
	EventType string
	Outcome   DeliveryOutcome
	DateFrom  *time.Time
	DateTo    *time.Time
}

const (
	DefaultDeliveryLogPageSize = 20
	MaxDeliveryLogPageSize     = 200
)

// Normalized applies paging defaults and truncates the date bounds to whole
// UTC days. DateTo becomes the exclusive start of the following day so both
// bounds are inclusive calendar days.
func (f DeliveryLogFilter) Normalized() DeliveryLogFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultDeliveryLogPageSize
	}
	if f.PageSize > MaxDeliveryLogPageSize {
		f.PageSize = MaxDeliveryLogPageSize
	}
	f.EventType = strings.TrimSpace(f.EventType)
	if f.DateFrom != nil {
		from := f.DateFrom.UTC().Truncate(24 * time.Hour)
		f.DateFrom = &from
	}
	if f.DateTo != nil {
		to := f.DateTo.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		f.DateTo = &to
	}
	return f
}

// Matches reports whether record passes a normalized filter.
func (f DeliveryLogFilter) Matches(record DeliveryLogRecord) bool {
	if f.EventType != "" && record.EventType != f.EventType {
		return false
	}
	if f.Outcome != "" && record.Outcome() != f.Outcome {
		return false
	}
	ts := record.Timestamp.UTC()
	if f.DateFrom != nil && ts.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !ts.Before(*f.DateTo) {
		return false
	}
	return true
}

func PageCount(total int, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

type DeliveryLogPage struct {
	Records  []DeliveryLogRecord `json:"logs"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"per_page"`
	Pages    int                 `json:"pages"`
}

type DeliveryStats struct {
	Total        int `json:"total"`
	SuccessCount int `json:"success"`
	ErrorCount   int `json:"error"`
	Last24h      int `json:"last_24h"`
}

func CopyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func CopyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
