package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type CredentialStore interface {
	ListCredentials(ctx context.Context) ([]Credential, error)
}

type CredentialIssuer interface {
	SaveCredential(ctx context.Context, credential Credential) error
	RevokeCredential(ctx context.Context, publicKey string) error
}

// ContactStore lookups return ErrNotFound when nothing matches. Writes that
// collide with the email or phone unique index return ErrConflict.
type ContactStore interface {
	Get(ctx context.Context, id int64) (Contact, error)
	FindByEmail(ctx context.Context, email string) (Contact, error)
	FindByPhone(ctx context.Context, phoneDigits string) (Contact, error)
	Create(ctx context.Context, contact Contact) (Contact, error)
	Update(ctx context.Context, contact Contact) (Contact, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ContactListFilter) (ContactPage, error)
	MetaKeys(ctx context.Context) ([]string, error)
}

type TagStore interface {
	FindByName(ctx context.Context, name string) (Tag, error)
	Create(ctx context.Context, name string) (Tag, error)
	Attach(ctx context.Context, contactID int64, tagID int64) (bool, error)
	Detach(ctx context.Context, contactID int64, tagID int64) (bool, error)
	ListForContact(ctx context.Context, contactID int64) ([]Tag, error)
}

type NoteStore interface {
	AddNote(ctx context.Context, note Note) (Note, error)
	ListNotes(ctx context.Context, contactID int64, limit int) ([]Note, error)
}

type ActivityStore interface {
	AddActivity(ctx context.Context, activity Activity) (Activity, error)
	ListActivity(ctx context.Context, contactID int64, limit int) ([]Activity, error)
}

// DeliveryLog is the append-only audit trail of outbound webhook attempts.
type DeliveryLog interface {
	Record(ctx context.Context, attempt DeliveryAttempt) (DeliveryLogRecord, error)
	Query(ctx context.Context, filter DeliveryLogFilter) (DeliveryLogPage, error)
	Stats(ctx context.Context) (DeliveryStats, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
	EventTypes(ctx context.Context) ([]string, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
