package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type throttled struct{}

func (throttled) Error() string { return "slow down" }

func (throttled) ToServiceError() *goerrors.Error {
	return goerrors.New("slow down", goerrors.CategoryRateLimit).WithTextCode(ErrorRateLimitExceeded)
}

func TestMapError_PreservesRichErrors(t *testing.T) {
	mapped := MapError(NewValidationError("email", "email or phone is required"))
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", mapped.Code)
	}
	if mapped.TextCode != ErrorValidation {
		t.Fatalf("expected %q, got %q", ErrorValidation, mapped.TextCode)
	}
}

func TestMapError_SentinelsAndMappers(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		textCode string
	}{
		{"not found", fmt.Errorf("sqlstore: contact 7: %w", ErrNotFound), http.StatusNotFound, ErrorNotFound},
		{"conflict", fmt.Errorf("sqlstore: %w", ErrConflict), http.StatusConflict, ErrorCreationFailed},
		{"service error mapper", fmt.Errorf("wrapped: %w", throttled{}), http.StatusTooManyRequests, ErrorRateLimitExceeded},
		{"required", errors.New("gateway: operation is required"), http.StatusBadRequest, ErrorValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, mapped.Code)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
		})
	}
}

func TestErrorConstructors_CarryTextCodes(t *testing.T) {
	if !IsErrorCode(NewCreationFailedError(errors.New("insert"), "contact create failed"), ErrorCreationFailed) {
		t.Fatalf("expected creation_failed text code")
	}
	if !IsErrorCode(NewResolutionFailedError(errors.New("timeout"), "lookup failed"), ErrorResolutionFailed) {
		t.Fatalf("expected resolution_failed text code")
	}
	dispatchErr := NewDispatchError(nil, "webhook returned 500", map[string]any{"status": 500})
	if !IsErrorCode(dispatchErr, ErrorDispatch) {
		t.Fatalf("expected dispatch_failed text code")
	}
	if dispatchErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for dispatch errors, got %d", dispatchErr.Code)
	}
	if IsErrorCode(errors.New("plain"), ErrorDispatch) {
		t.Fatalf("plain errors carry no text code")
	}
}

func TestOutcomeOf(t *testing.T) {
	ok := 204
	redirect := 302
	if OutcomeOf(&ok, "") != DeliveryOutcomeSuccess {
		t.Fatalf("expected 204 to be success")
	}
	if OutcomeOf(&redirect, "") != DeliveryOutcomeError {
		t.Fatalf("expected 302 to be error")
	}
	if OutcomeOf(&ok, "connection reset") != DeliveryOutcomeError {
		t.Fatalf("expected transport error to win over status")
	}
	if OutcomeOf(nil, "") != DeliveryOutcomeError {
		t.Fatalf("expected missing status to be error")
	}
}

func TestParseEventKind(t *testing.T) {
	kind, ok := ParseEventKind(" Form.Submitted ")
	if !ok || kind != EventFormSubmitted {
		t.Fatalf("expected form.submitted, got %q %v", kind, ok)
	}
	if _, ok := ParseEventKind("contact.merged"); ok {
		t.Fatalf("expected unknown event to be rejected")
	}
}

func TestWebhookEvent_TypeFollowsPayload(t *testing.T) {
	event := NewWebhookEvent(NoteAddedPayload{ContactID: 3, Content: "hi"}, " https://crm.example.com ", time.Unix(10, 0))
	if event.Type() != EventNoteAdded {
		t.Fatalf("expected note.added, got %q", event.Type())
	}
	if event.SiteIdentity != "https://crm.example.com" {
		t.Fatalf("expected trimmed site identity, got %q", event.SiteIdentity)
	}
	if (WebhookEvent{}).Type() != "" {
		t.Fatalf("expected empty type without payload")
	}
}
