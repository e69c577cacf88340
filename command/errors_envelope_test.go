package command

import (
	"context"
	"testing"

	"github.com/goliatone/go-crmsync/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestResolveContactMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ResolveContactMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name  string
		msg   interface{ Validate() error }
		valid bool
	}{
		{"resolve by phone", ResolveContactMessage{Identity: core.ContactIdentity{Phone: "555 123 4567"}}, true},
		{"update without id", UpdateContactMessage{Patch: core.ContactPatch{FirstName: "Ada"}}, false},
		{"update empty patch", UpdateContactMessage{ContactID: 4}, false},
		{"update", UpdateContactMessage{ContactID: 4, Patch: core.ContactPatch{FirstName: "Ada"}}, true},
		{"delete without id", DeleteContactMessage{}, false},
		{"apply blank tags", ApplyTagsMessage{ContactID: 1, Tags: []string{" ", ""}}, false},
		{"remove tags", RemoveTagsMessage{ContactID: 1, Tags: []string{"vip"}}, true},
		{"note without content", AddNoteMessage{Email: "a@x.com"}, false},
		{"form without data", SubmitFormMessage{}, false},
		{"dispatch without payload", DispatchEventMessage{}, false},
		{"unknown test event", SendTestWebhookMessage{Event: "contact.merged"}, false},
		{"test event", SendTestWebhookMessage{Event: "Tag.Applied"}, true},
		{"purge zero age", PurgeDeliveryLogMessage{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.valid && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
			if !tc.valid && !core.IsErrorCode(err, core.ErrorValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestResolveContactCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *ResolveContactCommand
	err := cmd.Execute(context.Background(), ResolveContactMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
