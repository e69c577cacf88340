package gateway

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crmsync/command"
	"github.com/goliatone/go-crmsync/query"
)

// Handlers is the set of command and query handlers the HTTP routes dispatch
// through.
type Handlers struct {
	ResolveContact   *command.ResolveContactCommand
	UpdateContact    *command.UpdateContactCommand
	DeleteContact    *command.DeleteContactCommand
	ApplyTags        *command.ApplyTagsCommand
	RemoveTags       *command.RemoveTagsCommand
	AddNote          *command.AddNoteCommand
	SubmitForm       *command.SubmitFormCommand
	DispatchEvent    *command.DispatchEventCommand
	SendTestWebhook  *command.SendTestWebhookCommand
	PurgeDeliveryLog *command.PurgeDeliveryLogCommand

	GetContact         *query.GetContactQuery
	ContactByPhone     *query.ContactByPhoneQuery
	ListContacts       *query.ListContactsQuery
	ContactActivity    *query.ContactActivityQuery
	ContactNotes       *query.ContactNotesQuery
	CustomFields       *query.CustomFieldsQuery
	DeliveryLog        *query.DeliveryLogQuery
	DeliveryStats      *query.DeliveryStatsQuery
	DeliveryEventTypes *query.DeliveryEventTypesQuery
}

type DeliveryLogStore interface {
	query.DeliveryLogReader
	command.DeliveryLogPurger
}

type ContactService interface {
	command.ContactService
	query.ContactReader
}

func NewHandlers(contacts ContactService, webhooks command.WebhookService, deliveries DeliveryLogStore) Handlers {
	return Handlers{
		ResolveContact:   command.NewResolveContactCommand(contacts),
		UpdateContact:    command.NewUpdateContactCommand(contacts),
		DeleteContact:    command.NewDeleteContactCommand(contacts),
		ApplyTags:        command.NewApplyTagsCommand(contacts),
		RemoveTags:       command.NewRemoveTagsCommand(contacts),
		AddNote:          command.NewAddNoteCommand(contacts),
		SubmitForm:       command.NewSubmitFormCommand(contacts),
		DispatchEvent:    command.NewDispatchEventCommand(webhooks),
		SendTestWebhook:  command.NewSendTestWebhookCommand(webhooks),
		PurgeDeliveryLog: command.NewPurgeDeliveryLogCommand(deliveries),

		GetContact:         query.NewGetContactQuery(contacts),
		ContactByPhone:     query.NewContactByPhoneQuery(contacts),
		ListContacts:       query.NewListContactsQuery(contacts),
		ContactActivity:    query.NewContactActivityQuery(contacts),
		ContactNotes:       query.NewContactNotesQuery(contacts),
		CustomFields:       query.NewCustomFieldsQuery(contacts),
		DeliveryLog:        query.NewDeliveryLogQuery(deliveries),
		DeliveryStats:      query.NewDeliveryStatsQuery(deliveries),
		DeliveryEventTypes: query.NewDeliveryEventTypesQuery(deliveries),
	}
}

type validatable interface {
	Validate() error
}

// runCommand validates msg, executes it and returns the result the handler
// stored through the go-command result collector.
func runCommand[R any, M validatable](ctx context.Context, execute func(context.Context, M) error, msg M) (R, error) {
	var zero R
	if err := msg.Validate(); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[R]()
	if err := execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

func runQuery[M validatable, R any](ctx context.Context, query func(context.Context, M) (R, error), msg M) (R, error) {
	if err := msg.Validate(); err != nil {
		var zero R
		return zero, err
	}
	return query(ctx, msg)
}
