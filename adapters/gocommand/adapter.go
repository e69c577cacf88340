package gocommand

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	crmcommand "github.com/goliatone/go-crmsync/command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/gateway"
	"github.com/goliatone/go-crmsync/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Bus mounts the contact and webhook handlers on a go-command registry and
// the process wide dispatcher, so in-process callers can send the same
// messages the HTTP routes use.
type Bus struct {
	registry   *command.Registry
	runnerOpts []runner.Option

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
}

func NewBus(registry *command.Registry, runnerOpts ...runner.Option) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry, runnerOpts: runnerOpts}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// Mount subscribes every handler in h and registers it with the registry.
// A failure unsubscribes whatever was mounted by this call.
func (b *Bus) Mount(h gateway.Handlers) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	mounts := []func() (commanddispatcher.Subscription, error){
		commandMount[crmcommand.ResolveContactMessage](b, h.ResolveContact),
		commandMount[crmcommand.UpdateContactMessage](b, h.UpdateContact),
		commandMount[crmcommand.DeleteContactMessage](b, h.DeleteContact),
		commandMount[crmcommand.ApplyTagsMessage](b, h.ApplyTags),
		commandMount[crmcommand.RemoveTagsMessage](b, h.RemoveTags),
		commandMount[crmcommand.AddNoteMessage](b, h.AddNote),
		commandMount[crmcommand.SubmitFormMessage](b, h.SubmitForm),
		commandMount[crmcommand.DispatchEventMessage](b, h.DispatchEvent),
		commandMount[crmcommand.SendTestWebhookMessage](b, h.SendTestWebhook),
		commandMount[crmcommand.PurgeDeliveryLogMessage](b, h.PurgeDeliveryLog),
		queryMount[query.GetContactMessage, core.Contact](b, h.GetContact),
		queryMount[query.ContactByPhoneMessage, core.Contact](b, h.ContactByPhone),
		queryMount[query.ListContactsMessage, core.ContactPage](b, h.ListContacts),
		queryMount[query.ContactActivityMessage, contacts.ActivityFeed](b, h.ContactActivity),
		queryMount[query.ContactNotesMessage, contacts.NoteFeed](b, h.ContactNotes),
		queryMount[query.CustomFieldsMessage, []contacts.CustomField](b, h.CustomFields),
		queryMount[query.DeliveryLogMessage, core.DeliveryLogPage](b, h.DeliveryLog),
		queryMount[query.DeliveryStatsMessage, core.DeliveryStats](b, h.DeliveryStats),
		queryMount[query.DeliveryEventTypesMessage, []string](b, h.DeliveryEventTypes),
	}

	mounted := make([]commanddispatcher.Subscription, 0, len(mounts))
	for _, mount := range mounts {
		sub, err := mount()
		if err != nil {
			for _, s := range mounted {
				s.Unsubscribe()
			}
			return err
		}
		if sub != nil {
			mounted = append(mounted, sub)
		}
	}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, mounted...)
	b.mu.Unlock()
	return nil
}

// Close unsubscribes every mounted handler.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subscriptions
	b.subscriptions = nil
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func commandMount[T any](b *Bus, cmd command.Commander[T]) func() (commanddispatcher.Subscription, error) {
	return func() (commanddispatcher.Subscription, error) {
		if isNil(cmd) {
			return nil, nil
		}
		sub := commanddispatcher.SubscribeCommand(cmd, b.runnerOpts...)
		if err := b.registry.RegisterCommand(cmd); err != nil {
			sub.Unsubscribe()
			return nil, err
		}
		return sub, nil
	}
}

func queryMount[T any, R any](b *Bus, qry command.Querier[T, R]) func() (commanddispatcher.Subscription, error) {
	return func() (commanddispatcher.Subscription, error) {
		if isNil(qry) {
			return nil, nil
		}
		sub := commanddispatcher.SubscribeQuery(qry, b.runnerOpts...)
		if err := b.registry.RegisterCommand(qry); err != nil {
			sub.Unsubscribe()
			return nil, err
		}
		return sub, nil
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Dispatch validates msg and sends it to its subscribed command handler.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchResult dispatches msg and returns what the handler stored in the
// result collector.
func DispatchResult[T any, R any](ctx context.Context, msg T) (R, bool, error) {
	collector := command.NewResult[R]()
	if err := Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		var zero R
		return zero, false, err
	}
	value, ok := collector.Load()
	return value, ok, nil
}

// Query validates msg and runs its subscribed query handler.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
