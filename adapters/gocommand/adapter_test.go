package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	crmcommand "github.com/goliatone/go-crmsync/command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/gateway"
	"github.com/goliatone/go-crmsync/normalize"
	"github.com/goliatone/go-crmsync/query"
	memstore "github.com/goliatone/go-crmsync/store/memory"
	"github.com/goliatone/go-crmsync/webhooks"
)

type okMessage struct{}

func (okMessage) Type() string { return "crmsync.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "crmsync.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

func newHandlers(t *testing.T) gateway.Handlers {
	t.Helper()
	cfg := core.DefaultConfig()
	stores := memstore.NewStores(nil)
	deliveries := webhooks.NewMemoryDeliveryLog()
	dispatcher := webhooks.NewDispatcher(cfg, deliveries, nil)
	sink := webhooks.SyncSink{Dispatcher: dispatcher}
	resolver := contacts.NewResolver(contacts.ResolverDependencies{
		Contacts: stores.Contacts,
		Tags:     stores.Tags,
		Phones:   normalize.NewPhoneNormalizer(cfg.Phone),
		Events:   sink,
	})
	service := contacts.NewService(contacts.ServiceDependencies{
		Resolver:   resolver,
		Contacts:   stores.Contacts,
		Notes:      stores.Notes,
		Activities: stores.Activities,
		Events:     sink,
	})
	return gateway.NewHandlers(service, dispatcher, deliveries)
}

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestBus_MountRoutesCommandsAndQueries(t *testing.T) {
	bus := NewBus(command.NewRegistry())
	if err := bus.Mount(newHandlers(t)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(bus.Close)
	if err := bus.Registry().Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	result, ok, err := DispatchResult[crmcommand.ResolveContactMessage, contacts.SyncResult](ctx, crmcommand.ResolveContactMessage{
		Identity: core.ContactIdentity{Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("dispatch resolve: %v", err)
	}
	if !ok || !result.Created || result.ContactID == 0 {
		t.Fatalf("unexpected sync result %#v (stored=%v)", result, ok)
	}

	contact, err := Query[query.GetContactMessage, core.Contact](ctx, query.GetContactMessage{ContactID: result.ContactID})
	if err != nil {
		t.Fatalf("query contact: %v", err)
	}
	if contact.Email != "ada@example.com" {
		t.Fatalf("unexpected contact %#v", contact)
	}
}

func TestBus_DispatchRejectsInvalidMessages(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Mount(newHandlers(t)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(bus.Close)

	if err := Dispatch(context.Background(), crmcommand.ResolveContactMessage{}); err == nil {
		t.Fatalf("expected identity validation to fail")
	}
	if _, err := Query[query.GetContactMessage, core.Contact](context.Background(), query.GetContactMessage{}); err == nil {
		t.Fatalf("expected missing contact id to fail")
	}
}

func TestBus_SkipsMissingHandlers(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Mount(gateway.Handlers{}); err != nil {
		t.Fatalf("expected empty handler set to mount, got %v", err)
	}
	bus.Close()

	var nilBus *Bus
	if err := nilBus.Mount(gateway.Handlers{}); err == nil {
		t.Fatalf("expected nil bus to fail")
	}
}

func TestBus_DispatchEventWithoutURLIsSkipped(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Mount(newHandlers(t)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(bus.Close)

	result, ok, err := DispatchResult[crmcommand.DispatchEventMessage, webhooks.Result](context.Background(), crmcommand.DispatchEventMessage{
		Payload: core.EmailSentPayload{ContactID: 3, Email: "ada@example.com", EmailID: 9, Subject: "Welcome"},
	})
	if err != nil {
		t.Fatalf("dispatch event: %v", err)
	}
	if !ok || !result.Skipped || result.Reason != webhooks.SkipNoURL {
		t.Fatalf("expected skipped result, got %#v (stored=%v)", result, ok)
	}
	if result.EventType != string(core.EventEmailSent) {
		t.Fatalf("unexpected event type %q", result.EventType)
	}
}
