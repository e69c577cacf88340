package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type contactRecord struct {
	bun.BaseModel `bun:"table:crm_contacts,alias:cc"`

	ID          int64             `bun:"id,pk,autoincrement"`
	Email       string            `bun:"email,notnull"`
	FirstName   string            `bun:"first_name,notnull"`
	LastName    string            `bun:"last_name,notnull"`
	Phone       string            `bun:"phone,notnull"`
	PhoneDigits *string           `bun:"phone_digits"`
	Meta        map[string]string `bun:"meta,type:jsonb,notnull"`
	IsPhoneOnly bool              `bun:"is_phone_only,notnull"`
	OptinStatus string            `bun:"optin_status,notnull"`
	Owner       string            `bun:"owner,notnull"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type tagRecord struct {
	bun.BaseModel `bun:"table:crm_tags,alias:ct"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type contactTagRecord struct {
	bun.BaseModel `bun:"table:crm_contact_tags,alias:cct"`

	ContactID int64     `bun:"contact_id,pk"`
	TagID     int64     `bun:"tag_id,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type noteRecord struct {
	bun.BaseModel `bun:"table:crm_notes,alias:cn"`

	ID        int64     `bun:"id,pk,autoincrement"`
	ContactID int64     `bun:"contact_id,notnull"`
	Content   string    `bun:"content,notnull"`
	Type      string    `bun:"note_type,notnull"`
	Owner     string    `bun:"owner,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type activityRecord struct {
	bun.BaseModel `bun:"table:crm_activities,alias:ca"`

	ID          int64          `bun:"id,pk,autoincrement"`
	ContactID   int64          `bun:"contact_id,notnull"`
	Type        string         `bun:"activity_type,notnull"`
	Description string         `bun:"description,notnull"`
	Meta        map[string]any `bun:"meta,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type apiKeyRecord struct {
	bun.BaseModel `bun:"table:crm_api_keys,alias:cak"`

	PublicKey string    `bun:"public_key,pk"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rateWindowRecord struct {
	bun.BaseModel `bun:"table:crm_rate_windows,alias:crw"`

	BucketKey   string `bun:"bucket_key,pk"`
	WindowStart int64  `bun:"window_start,pk"`
	Hits        int    `bun:"hits,notnull"`
}

type responseCacheRecord struct {
	bun.BaseModel `bun:"table:crm_response_cache,alias:crc"`

	CacheKey  string    `bun:"cache_key,pk"`
	Value     []byte    `bun:"value,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

type webhookLogRecord struct {
	bun.BaseModel `bun:"table:crm_webhook_logs,alias:cwl"`

	ID           int64     `bun:"id,pk,autoincrement"`
	EventType    string    `bun:"event_type,notnull"`
	WebhookURL   string    `bun:"webhook_url,notnull"`
	Payload      []byte    `bun:"payload,notnull"`
	ResponseCode *int      `bun:"response_code"`
	ResponseBody string    `bun:"response_body,notnull"`
	ErrorMessage string    `bun:"error_message,notnull"`
	Succeeded    bool      `bun:"succeeded,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}
