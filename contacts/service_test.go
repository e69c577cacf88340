package contacts

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-crmsync/core"
)

func TestSubmitForm_CreatesContactTagsNoteAndEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.SubmitForm(ctx, core.FormSubmission{
		FormID:       "contact-us",
		Data:         map[string]string{"email": "a@x.com", "phone": "5551234567", "message": "hello"},
		Tags:         []string{"lead"},
		CustomFields: map[string]string{"source": "landing"},
	})
	if err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if !result.Created || result.Status != "success" {
		t.Fatalf("expected a new contact, got %+v", result)
	}

	contact, err := f.resolver.Get(ctx, result.ContactID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact.Phone != "+1-555-123-4567" {
		t.Fatalf("expected normalized phone, got %q", contact.Phone)
	}
	if len(contact.Tags) != 1 || contact.Tags[0].Name != "lead" {
		t.Fatalf("expected lead tag, got %+v", contact.Tags)
	}
	if contact.Meta["source"] != "landing" {
		t.Fatalf("expected custom field in meta, got %+v", contact.Meta)
	}

	notes, err := f.service.Notes(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	if len(notes.Notes) != 1 || !strings.Contains(notes.Notes[0].Content, "contact-us") {
		t.Fatalf("expected audit note, got %+v", notes.Notes)
	}
	feed, err := f.service.Activity(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(feed.Activity) != 1 || feed.Activity[0].Type != FormActivityType {
		t.Fatalf("expected form activity, got %+v", feed.Activity)
	}
	if feed.Activity[0].ID != result.ActivityID {
		t.Fatalf("expected activity id %d, got %d", result.ActivityID, feed.Activity[0].ID)
	}

	kinds := f.sink.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != core.EventFormSubmitted {
		t.Fatalf("expected form.submitted as the last event, got %v", kinds)
	}
}

func TestSubmitForm_RequiresEmailOrPhone(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.SubmitForm(context.Background(), core.FormSubmission{
		FormID: "contact-us",
		Data:   map[string]string{"message": "hello"},
	})
	if !core.IsErrorCode(err, core.ErrorValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.sink.kinds()) != 0 {
		t.Fatalf("expected no events for rejected submission")
	}
}

func TestAddNote_RequiresContentAndContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.AddNote(ctx, "ada@example.com", NoteInput{Content: " "}); !core.IsErrorCode(err, core.ErrorValidation) {
		t.Fatalf("expected validation error for empty content, got %v", err)
	}
	if _, err := f.service.AddNote(ctx, "ada@example.com", NoteInput{Content: "hi"}); !core.IsErrorCode(err, core.ErrorNotFound) {
		t.Fatalf("expected not_found for unknown contact, got %v", err)
	}

	if _, _, err := f.resolver.ResolveOrCreate(ctx, core.ContactIdentity{Email: "ada@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	note, err := f.service.AddNote(ctx, "ADA@example.com", NoteInput{Content: "Called back", Owner: "admin"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if note.Type != DefaultNoteType || note.Owner != "admin" {
		t.Fatalf("unexpected note %+v", note)
	}
	if f.sink.count(core.EventNoteAdded) != 1 {
		t.Fatalf("expected note.added event")
	}
}

func TestList_PaginatesAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "b@x.com", "c@y.com"} {
		if _, _, err := f.resolver.ResolveOrCreate(ctx, core.ContactIdentity{Email: email}); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	page, err := f.service.List(ctx, core.ContactListFilter{PerPage: 2, OrderBy: "email", Order: "asc"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.Page != 1 || page.PerPage != 2 || len(page.Contacts) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Contacts[0].Email != "a@x.com" {
		t.Fatalf("expected ascending email order, got %q", page.Contacts[0].Email)
	}

	filtered, err := f.service.List(ctx, core.ContactListFilter{Search: "@x.com"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if filtered.Total != 2 {
		t.Fatalf("expected total to reflect the filtered set, got %d", filtered.Total)
	}
}

func TestCustomFields_ListsMetaKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, _, err := f.resolver.ResolveOrCreate(ctx, core.ContactIdentity{
		Email: "a@x.com",
		Meta:  map[string]string{"lead_source": "ads", "company": "acme"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	fields, err := f.service.CustomFields(ctx)
	if err != nil {
		t.Fatalf("custom fields: %v", err)
	}
	if len(fields) != 2 || fields[0].ID != "company" || fields[1].Name != "Lead Source" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestQuickSync_ReturnsSummary(t *testing.T) {
	f := newFixture(t)
	result, err := f.service.QuickSync(context.Background(), core.ContactIdentity{
		Phone: "555 123 4567",
		Tags:  []string{"sms"},
	})
	if err != nil {
		t.Fatalf("quick sync: %v", err)
	}
	if !result.PhoneOnly || result.Phone != "+1-555-123-4567" || len(result.Tags) != 1 {
		t.Fatalf("unexpected summary %+v", result)
	}
}
