package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/webhooks"
)

type ContactService interface {
	QuickSync(ctx context.Context, identity core.ContactIdentity) (contacts.SyncResult, error)
	Update(ctx context.Context, id int64, patch core.ContactPatch) (core.Contact, error)
	Delete(ctx context.Context, id int64) error
	ApplyTags(ctx context.Context, id int64, names []string) ([]core.Tag, error)
	RemoveTags(ctx context.Context, id int64, names []string) ([]core.Tag, error)
	AddNote(ctx context.Context, email string, input contacts.NoteInput) (core.Note, error)
	SubmitForm(ctx context.Context, submission core.FormSubmission) (contacts.FormResult, error)
}

type WebhookService interface {
	NewEvent(payload core.EventPayload) core.WebhookEvent
	Dispatch(ctx context.Context, event core.WebhookEvent) (webhooks.Result, error)
	SendTest(ctx context.Context, kind core.EventKind) (webhooks.Result, error)
}

type DeliveryLogPurger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type ResolveContactCommand struct {
	service ContactService
}

func NewResolveContactCommand(service ContactService) *ResolveContactCommand {
	return &ResolveContactCommand{service: service}
}

func (c *ResolveContactCommand) Execute(ctx context.Context, msg ResolveContactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.QuickSync(ctx, msg.Identity)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateContactCommand struct {
	service ContactService
}

func NewUpdateContactCommand(service ContactService) *UpdateContactCommand {
	return &UpdateContactCommand{service: service}
}

func (c *UpdateContactCommand) Execute(ctx context.Context, msg UpdateContactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.Update(ctx, msg.ContactID, msg.Patch)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteContactCommand struct {
	service ContactService
}

func NewDeleteContactCommand(service ContactService) *DeleteContactCommand {
	return &DeleteContactCommand{service: service}
}

func (c *DeleteContactCommand) Execute(ctx context.Context, msg DeleteContactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	return c.service.Delete(ctx, msg.ContactID)
}

type ApplyTagsCommand struct {
	service ContactService
}

func NewApplyTagsCommand(service ContactService) *ApplyTagsCommand {
	return &ApplyTagsCommand{service: service}
}

func (c *ApplyTagsCommand) Execute(ctx context.Context, msg ApplyTagsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.ApplyTags(ctx, msg.ContactID, msg.Tags)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveTagsCommand struct {
	service ContactService
}

func NewRemoveTagsCommand(service ContactService) *RemoveTagsCommand {
	return &RemoveTagsCommand{service: service}
}

func (c *RemoveTagsCommand) Execute(ctx context.Context, msg RemoveTagsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.RemoveTags(ctx, msg.ContactID, msg.Tags)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AddNoteCommand struct {
	service ContactService
}

func NewAddNoteCommand(service ContactService) *AddNoteCommand {
	return &AddNoteCommand{service: service}
}

func (c *AddNoteCommand) Execute(ctx context.Context, msg AddNoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.AddNote(ctx, msg.Email, msg.Note)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SubmitFormCommand struct {
	service ContactService
}

func NewSubmitFormCommand(service ContactService) *SubmitFormCommand {
	return &SubmitFormCommand{service: service}
}

func (c *SubmitFormCommand) Execute(ctx context.Context, msg SubmitFormMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.SubmitForm(ctx, msg.Submission)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchEventCommand struct {
	service WebhookService
}

func NewDispatchEventCommand(service WebhookService) *DispatchEventCommand {
	return &DispatchEventCommand{service: service}
}

// Execute dispatches once. The result is stored even when delivery fails so
// callers can inspect the recorded attempt.
func (c *DispatchEventCommand) Execute(ctx context.Context, msg DispatchEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.Dispatch(ctx, c.service.NewEvent(msg.Payload))
	storeResult(ctx, out)
	return err
}

type SendTestWebhookCommand struct {
	service WebhookService
}

func NewSendTestWebhookCommand(service WebhookService) *SendTestWebhookCommand {
	return &SendTestWebhookCommand{service: service}
}

func (c *SendTestWebhookCommand) Execute(ctx context.Context, msg SendTestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	kind, ok := core.ParseEventKind(msg.Event)
	if !ok {
		return commandValidationError("event", "unknown event type")
	}
	out, err := c.service.SendTest(ctx, kind)
	storeResult(ctx, out)
	return err
}

type PurgeDeliveryLogCommand struct {
	log DeliveryLogPurger
}

func NewPurgeDeliveryLogCommand(log DeliveryLogPurger) *PurgeDeliveryLogCommand {
	return &PurgeDeliveryLogCommand{log: log}
}

func (c *PurgeDeliveryLogCommand) Execute(ctx context.Context, msg PurgeDeliveryLogMessage) error {
	if c == nil || c.log == nil {
		return commandDependencyError("command: delivery log is required")
	}
	removed, err := c.log.PurgeOlderThan(ctx, msg.MaxAge)
	if err != nil {
		return core.NewPersistenceError(err, "command: purge delivery log failed")
	}
	storeResult(ctx, removed)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
