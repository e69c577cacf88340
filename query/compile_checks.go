package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
)

var (
	_ gocmd.Querier[GetContactMessage, core.Contact]               = (*GetContactQuery)(nil)
	_ gocmd.Querier[ContactByPhoneMessage, core.Contact]           = (*ContactByPhoneQuery)(nil)
	_ gocmd.Querier[ListContactsMessage, core.ContactPage]         = (*ListContactsQuery)(nil)
	_ gocmd.Querier[ContactActivityMessage, contacts.ActivityFeed] = (*ContactActivityQuery)(nil)
	_ gocmd.Querier[ContactNotesMessage, contacts.NoteFeed]        = (*ContactNotesQuery)(nil)
	_ gocmd.Querier[CustomFieldsMessage, []contacts.CustomField]   = (*CustomFieldsQuery)(nil)
	_ gocmd.Querier[DeliveryLogMessage, core.DeliveryLogPage]      = (*DeliveryLogQuery)(nil)
	_ gocmd.Querier[DeliveryStatsMessage, core.DeliveryStats]      = (*DeliveryStatsQuery)(nil)
	_ gocmd.Querier[DeliveryEventTypesMessage, []string]           = (*DeliveryEventTypesQuery)(nil)

	_ ContactReader     = (*contacts.Service)(nil)
	_ DeliveryLogReader = (core.DeliveryLog)(nil)
)
