package query

import (
	"context"

	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
)

type ContactReader interface {
	Get(ctx context.Context, id int64) (core.Contact, error)
	FindByPhone(ctx context.Context, phone string) (core.Contact, error)
	List(ctx context.Context, filter core.ContactListFilter) (core.ContactPage, error)
	Activity(ctx context.Context, email string) (contacts.ActivityFeed, error)
	Notes(ctx context.Context, email string) (contacts.NoteFeed, error)
	CustomFields(ctx context.Context) ([]contacts.CustomField, error)
}

type DeliveryLogReader interface {
	Query(ctx context.Context, filter core.DeliveryLogFilter) (core.DeliveryLogPage, error)
	Stats(ctx context.Context) (core.DeliveryStats, error)
	EventTypes(ctx context.Context) ([]string, error)
}

type GetContactQuery struct {
	reader ContactReader
}

func NewGetContactQuery(reader ContactReader) *GetContactQuery {
	return &GetContactQuery{reader: reader}
}

func (q *GetContactQuery) Query(ctx context.Context, msg GetContactMessage) (core.Contact, error) {
	if q == nil || q.reader == nil {
		return core.Contact{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.Get(ctx, msg.ContactID)
}

type ContactByPhoneQuery struct {
	reader ContactReader
}

func NewContactByPhoneQuery(reader ContactReader) *ContactByPhoneQuery {
	return &ContactByPhoneQuery{reader: reader}
}

func (q *ContactByPhoneQuery) Query(ctx context.Context, msg ContactByPhoneMessage) (core.Contact, error) {
	if q == nil || q.reader == nil {
		return core.Contact{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.FindByPhone(ctx, msg.Phone)
}

type ListContactsQuery struct {
	reader ContactReader
}

func NewListContactsQuery(reader ContactReader) *ListContactsQuery {
	return &ListContactsQuery{reader: reader}
}

func (q *ListContactsQuery) Query(ctx context.Context, msg ListContactsMessage) (core.ContactPage, error) {
	if q == nil || q.reader == nil {
		return core.ContactPage{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}

type ContactActivityQuery struct {
	reader ContactReader
}

func NewContactActivityQuery(reader ContactReader) *ContactActivityQuery {
	return &ContactActivityQuery{reader: reader}
}

func (q *ContactActivityQuery) Query(ctx context.Context, msg ContactActivityMessage) (contacts.ActivityFeed, error) {
	if q == nil || q.reader == nil {
		return contacts.ActivityFeed{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.Activity(ctx, msg.Email)
}

type ContactNotesQuery struct {
	reader ContactReader
}

func NewContactNotesQuery(reader ContactReader) *ContactNotesQuery {
	return &ContactNotesQuery{reader: reader}
}

func (q *ContactNotesQuery) Query(ctx context.Context, msg ContactNotesMessage) (contacts.NoteFeed, error) {
	if q == nil || q.reader == nil {
		return contacts.NoteFeed{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.Notes(ctx, msg.Email)
}

type CustomFieldsQuery struct {
	reader ContactReader
}

func NewCustomFieldsQuery(reader ContactReader) *CustomFieldsQuery {
	return &CustomFieldsQuery{reader: reader}
}

func (q *CustomFieldsQuery) Query(ctx context.Context, _ CustomFieldsMessage) ([]contacts.CustomField, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: contact reader is required")
	}
	return q.reader.CustomFields(ctx)
}

type DeliveryLogQuery struct {
	reader DeliveryLogReader
}

func NewDeliveryLogQuery(reader DeliveryLogReader) *DeliveryLogQuery {
	return &DeliveryLogQuery{reader: reader}
}

func (q *DeliveryLogQuery) Query(ctx context.Context, msg DeliveryLogMessage) (core.DeliveryLogPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryLogPage{}, queryDependencyError("query: delivery log reader is required")
	}
	page, err := q.reader.Query(ctx, msg.Filter)
	if err != nil {
		return core.DeliveryLogPage{}, core.NewPersistenceError(err, "query: read delivery log failed")
	}
	if page.Records == nil {
		page.Records = []core.DeliveryLogRecord{}
	}
	return page, nil
}

type DeliveryStatsQuery struct {
	reader DeliveryLogReader
}

func NewDeliveryStatsQuery(reader DeliveryLogReader) *DeliveryStatsQuery {
	return &DeliveryStatsQuery{reader: reader}
}

func (q *DeliveryStatsQuery) Query(ctx context.Context, _ DeliveryStatsMessage) (core.DeliveryStats, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryStats{}, queryDependencyError("query: delivery log reader is required")
	}
	stats, err := q.reader.Stats(ctx)
	if err != nil {
		return core.DeliveryStats{}, core.NewPersistenceError(err, "query: read delivery stats failed")
	}
	return stats, nil
}

type DeliveryEventTypesQuery struct {
	reader DeliveryLogReader
}

func NewDeliveryEventTypesQuery(reader DeliveryLogReader) *DeliveryEventTypesQuery {
	return &DeliveryEventTypesQuery{reader: reader}
}

func (q *DeliveryEventTypesQuery) Query(ctx context.Context, _ DeliveryEventTypesMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery log reader is required")
	}
	types, err := q.reader.EventTypes(ctx)
	if err != nil {
		return nil, core.NewPersistenceError(err, "query: read delivery event types failed")
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}
