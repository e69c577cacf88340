package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/webhooks"
)

var (
	_ gocmd.Commander[ResolveContactMessage]   = (*ResolveContactCommand)(nil)
	_ gocmd.Commander[UpdateContactMessage]    = (*UpdateContactCommand)(nil)
	_ gocmd.Commander[DeleteContactMessage]    = (*DeleteContactCommand)(nil)
	_ gocmd.Commander[ApplyTagsMessage]        = (*ApplyTagsCommand)(nil)
	_ gocmd.Commander[RemoveTagsMessage]       = (*RemoveTagsCommand)(nil)
	_ gocmd.Commander[AddNoteMessage]          = (*AddNoteCommand)(nil)
	_ gocmd.Commander[SubmitFormMessage]       = (*SubmitFormCommand)(nil)
	_ gocmd.Commander[DispatchEventMessage]    = (*DispatchEventCommand)(nil)
	_ gocmd.Commander[SendTestWebhookMessage]  = (*SendTestWebhookCommand)(nil)
	_ gocmd.Commander[PurgeDeliveryLogMessage] = (*PurgeDeliveryLogCommand)(nil)

	_ ContactService = (*contacts.Service)(nil)
	_ WebhookService = (*webhooks.Dispatcher)(nil)
)
