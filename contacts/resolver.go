// Package contacts resolves partial identity data to a single contact record
// and exposes the contact operations served by the gateway.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/normalize"
)

type ResolverDependencies struct {
	Contacts core.ContactStore
	Tags     core.TagStore
	Phones   normalize.PhoneNormalizer
	Events   core.EventSink
	Logger   core.Logger
}

type Resolver struct {
	contacts core.ContactStore
	tags     core.TagStore
	phones   normalize.PhoneNormalizer
	events   core.EventSink
	logger   core.Logger
}

func NewResolver(deps ResolverDependencies) *Resolver {
	events := deps.Events
	if events == nil {
		events = core.NopEventSink{}
	}
	return &Resolver{
		contacts: deps.Contacts,
		tags:     deps.Tags,
		phones:   deps.Phones,
		events:   events,
		logger:   core.ResolveLogger("crmsync.contacts", nil, deps.Logger),
	}
}

// identityInput is a validated, normalized ContactIdentity.
type identityInput struct {
	email        string
	phone        string
	phoneDigits  string
	firstName    string
	lastName     string
	tags         []string
	meta         map[string]string
	phoneClaimed bool
}

// ResolveOrCreate finds the contact reachable through the identity's email or
// phone, merging non-empty incoming fields, or creates it. The boolean result
// reports whether a new record was created.
func (r *Resolver) ResolveOrCreate(ctx context.Context, identity core.ContactIdentity) (core.Contact, bool, error) {
	if err := r.ready(); err != nil {
		return core.Contact{}, false, err
	}
	input, err := r.prepare(identity)
	if err != nil {
		return core.Contact{}, false, err
	}

	existing, found, err := r.lookup(ctx, &input)
	if err != nil {
		return core.Contact{}, false, err
	}

	var (
		contact core.Contact
		created bool
	)
	if found {
		contact, err = r.merge(ctx, existing, input)
	} else {
		contact, created, err = r.create(ctx, input)
	}
	if err != nil {
		return core.Contact{}, false, err
	}

	if len(input.tags) > 0 {
		if _, err := r.applyTags(ctx, contact, input.tags); err != nil {
			return core.Contact{}, false, err
		}
		contact, err = r.reload(ctx, contact.ID)
		if err != nil {
			return core.Contact{}, false, err
		}
	}
	return contact, created, nil
}

// lookup implements the resolution order: email first, phone second. A phone
// match owned by a contact with a real, different email is never merged; the
// phone is then left unclaimed on the incoming record.
func (r *Resolver) lookup(ctx context.Context, input *identityInput) (core.Contact, bool, error) {
	if input.email != "" {
		contact, found, err := r.find(ctx, "email", input.email, r.contacts.FindByEmail)
		if err != nil || found {
			if found && input.phoneDigits != "" && contact.PhoneDigits != input.phoneDigits {
				owner, owned, ownerErr := r.find(ctx, "phone", input.phoneDigits, r.contacts.FindByPhone)
				if ownerErr != nil {
					return core.Contact{}, false, ownerErr
				}
				input.phoneClaimed = !owned || owner.ID == contact.ID
			}
			return contact, found, err
		}
	}
	if input.phoneDigits == "" {
		return core.Contact{}, false, nil
	}
	contact, found, err := r.find(ctx, "phone", input.phoneDigits, r.contacts.FindByPhone)
	if err != nil || !found {
		return core.Contact{}, false, err
	}
	if input.email == "" || contact.IsPhoneOnly || normalize.IsPlaceholderEmail(contact.Email) {
		return contact, true, nil
	}
	input.phoneClaimed = false
	core.LogWithLevel(ctx, r.logger, "warn", "phone already belongs to another contact", map[string]any{
		"contact_id": contact.ID,
		"email":      input.email,
	})
	return core.Contact{}, false, nil
}

func (r *Resolver) find(ctx context.Context, field string, value string, fn func(context.Context, string) (core.Contact, error)) (core.Contact, bool, error) {
	contact, err := fn(ctx, value)
	if err == nil {
		return contact, true, nil
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.Contact{}, false, nil
	}
	return core.Contact{}, false, core.NewResolutionFailedError(err, "contacts: lookup by "+field+" failed")
}

func (r *Resolver) create(ctx context.Context, input identityInput) (core.Contact, bool, error) {
	contact := core.Contact{
		Email:     input.email,
		FirstName: input.firstName,
		LastName:  input.lastName,
		Meta:      core.CopyStringMap(input.meta),
	}
	if input.phoneClaimed {
		contact.Phone = input.phone
		contact.PhoneDigits = input.phoneDigits
	}
	if contact.Email == "" {
		contact.Email = normalize.PlaceholderEmail(input.phoneDigits)
		contact.IsPhoneOnly = true
	}

	created, err := r.contacts.Create(ctx, contact)
	if err != nil {
		if !errors.Is(err, core.ErrConflict) {
			return core.Contact{}, false, core.NewCreationFailedError(err, "contacts: create contact failed")
		}
		// A concurrent request created the same identity first.
		winner, found, lookupErr := r.lookup(ctx, &input)
		if lookupErr != nil {
			return core.Contact{}, false, lookupErr
		}
		if !found {
			return core.Contact{}, false, core.NewCreationFailedError(err, "contacts: create contact failed")
		}
		merged, mergeErr := r.merge(ctx, winner, input)
		return merged, false, mergeErr
	}

	core.LogWithLevel(ctx, r.logger, "info", "contact created", map[string]any{
		"contact_id":    created.ID,
		"is_phone_only": created.IsPhoneOnly,
	})
	r.events.Publish(ctx, core.ContactCreatedPayload{Contact: created.Snapshot()})
	return created, true, nil
}

func (r *Resolver) merge(ctx context.Context, existing core.Contact, input identityInput) (core.Contact, error) {
	next := existing
	next.Meta = core.CopyStringMap(existing.Meta)
	var changed []string

	if input.email != "" && !strings.EqualFold(existing.Email, input.email) &&
		(existing.IsPhoneOnly || normalize.IsPlaceholderEmail(existing.Email)) {
		next.Email = input.email
		next.IsPhoneOnly = false
		changed = append(changed, "email")
	}
	if input.firstName != "" && input.firstName != existing.FirstName {
		next.FirstName = input.firstName
		changed = append(changed, "first_name")
	}
	if input.lastName != "" && input.lastName != existing.LastName {
		next.LastName = input.lastName
		changed = append(changed, "last_name")
	}
	if input.phoneClaimed && input.phoneDigits != "" &&
		(input.phoneDigits != existing.PhoneDigits || input.phone != existing.Phone) {
		next.Phone = input.phone
		next.PhoneDigits = input.phoneDigits
		changed = append(changed, "phone")
	}
	for key, value := range input.meta {
		if value == "" || next.Meta[key] == value {
			continue
		}
		next.Meta[key] = value
		changed = appendOnce(changed, "meta")
	}

	if len(changed) == 0 {
		return existing, nil
	}
	return r.save(ctx, next, changed)
}

func (r *Resolver) save(ctx context.Context, contact core.Contact, changed []string) (core.Contact, error) {
	updated, err := r.contacts.Update(ctx, contact)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			return core.Contact{}, core.NewNotFoundError("contact", strconv.FormatInt(contact.ID, 10))
		case errors.Is(err, core.ErrConflict):
			return core.Contact{}, core.NewConflictError(strings.Join(changed, ","), contact.Email)
		default:
			return core.Contact{}, core.NewPersistenceError(err, "contacts: update contact failed")
		}
	}
	core.LogWithLevel(ctx, r.logger, "debug", "contact updated", map[string]any{
		"contact_id": updated.ID,
		"changed":    strings.Join(changed, ","),
	})
	r.events.Publish(ctx, core.ContactUpdatedPayload{Contact: updated.Snapshot(), ChangedFields: changed})
	return updated, nil
}

// Update applies the non-empty fields of patch to the contact.
func (r *Resolver) Update(ctx context.Context, id int64, patch core.ContactPatch) (core.Contact, error) {
	if err := r.ready(); err != nil {
		return core.Contact{}, err
	}
	existing, err := r.Get(ctx, id)
	if err != nil {
		return core.Contact{}, err
	}
	if patch.Empty() {
		return existing, nil
	}

	input := identityInput{
		firstName:    strings.TrimSpace(patch.FirstName),
		lastName:     strings.TrimSpace(patch.LastName),
		meta:         patch.Meta,
		phoneClaimed: true,
	}
	next := existing
	next.Meta = core.CopyStringMap(existing.Meta)
	var changed []string

	if email := normalize.Email(patch.Email); email != "" && !strings.EqualFold(email, existing.Email) {
		if err := normalize.ValidateEmail(email); err != nil {
			return core.Contact{}, core.NewValidationError("email", "email is invalid")
		}
		next.Email = email
		next.IsPhoneOnly = false
		changed = append(changed, "email")
	}
	if phone := strings.TrimSpace(patch.Phone); phone != "" {
		if err := r.phones.Validate(phone); err != nil {
			return core.Contact{}, core.NewValidationError("phone", phoneMessage(err))
		}
		input.phone = r.phones.Normalize(phone)
		input.phoneDigits = r.phones.Canonical(phone)
	}
	if optin := strings.TrimSpace(patch.OptinStatus); optin != "" && optin != existing.OptinStatus {
		next.OptinStatus = optin
		changed = append(changed, "optin_status")
	}
	if owner := strings.TrimSpace(patch.Owner); owner != "" && owner != existing.Owner {
		next.Owner = owner
		changed = append(changed, "owner")
	}

	if input.firstName != "" && input.firstName != next.FirstName {
		next.FirstName = input.firstName
		changed = append(changed, "first_name")
	}
	if input.lastName != "" && input.lastName != next.LastName {
		next.LastName = input.lastName
		changed = append(changed, "last_name")
	}
	if input.phoneDigits != "" && (input.phoneDigits != next.PhoneDigits || input.phone != next.Phone) {
		next.Phone = input.phone
		next.PhoneDigits = input.phoneDigits
		changed = append(changed, "phone")
	}
	for key, value := range input.meta {
		if value == "" || next.Meta[key] == value {
			continue
		}
		next.Meta[key] = value
		changed = appendOnce(changed, "meta")
	}
	if len(changed) == 0 {
		return existing, nil
	}
	return r.save(ctx, next, changed)
}

// ApplyTags associates tags by exact name, creating missing tags. Already
// applied tags are skipped. It returns the tags newly attached.
func (r *Resolver) ApplyTags(ctx context.Context, id int64, names []string) ([]core.Tag, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	contact, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.applyTags(ctx, contact, names)
}

func (r *Resolver) applyTags(ctx context.Context, contact core.Contact, names []string) ([]core.Tag, error) {
	var applied []core.Tag
	for _, name := range cleanTagNames(names) {
		tag, err := r.tagByName(ctx, name, true)
		if err != nil {
			return applied, err
		}
		attached, err := r.tags.Attach(ctx, contact.ID, tag.ID)
		if err != nil {
			return applied, core.NewPersistenceError(err, "contacts: apply tag failed")
		}
		if !attached {
			continue
		}
		applied = append(applied, tag)
		r.events.Publish(ctx, core.TagAppliedPayload{
			ContactID: contact.ID,
			Email:     contact.Email,
			TagID:     tag.ID,
			TagName:   tag.Name,
		})
	}
	return applied, nil
}

// RemoveTags detaches tags by name. Unknown or unattached tags are skipped.
func (r *Resolver) RemoveTags(ctx context.Context, id int64, names []string) ([]core.Tag, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	contact, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var removed []core.Tag
	for _, name := range cleanTagNames(names) {
		tag, err := r.tagByName(ctx, name, false)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return removed, err
		}
		detached, err := r.tags.Detach(ctx, contact.ID, tag.ID)
		if err != nil {
			return removed, core.NewPersistenceError(err, "contacts: remove tag failed")
		}
		if !detached {
			continue
		}
		removed = append(removed, tag)
		r.events.Publish(ctx, core.TagRemovedPayload{
			ContactID: contact.ID,
			Email:     contact.Email,
			TagID:     tag.ID,
			TagName:   tag.Name,
		})
	}
	return removed, nil
}

func (r *Resolver) tagByName(ctx context.Context, name string, create bool) (core.Tag, error) {
	tag, err := r.tags.FindByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Tag{}, core.NewResolutionFailedError(err, "contacts: tag lookup failed")
	}
	if !create {
		return core.Tag{}, err
	}
	tag, err = r.tags.Create(ctx, name)
	if err == nil {
		return tag, nil
	}
	if errors.Is(err, core.ErrConflict) {
		if existing, findErr := r.tags.FindByName(ctx, name); findErr == nil {
			return existing, nil
		}
	}
	return core.Tag{}, core.NewCreationFailedError(err, "contacts: create tag failed")
}

func (r *Resolver) Get(ctx context.Context, id int64) (core.Contact, error) {
	if err := r.ready(); err != nil {
		return core.Contact{}, err
	}
	if id <= 0 {
		return core.Contact{}, core.NewValidationError("id", "contact id is required")
	}
	return r.reload(ctx, id)
}

func (r *Resolver) reload(ctx context.Context, id int64) (core.Contact, error) {
	contact, err := r.contacts.Get(ctx, id)
	if err == nil {
		return contact, nil
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.Contact{}, core.NewNotFoundError("contact", strconv.FormatInt(id, 10))
	}
	return core.Contact{}, core.NewResolutionFailedError(err, "contacts: get contact failed")
}

func (r *Resolver) FindByEmail(ctx context.Context, email string) (core.Contact, error) {
	if err := r.ready(); err != nil {
		return core.Contact{}, err
	}
	email = normalize.Email(email)
	if email == "" {
		return core.Contact{}, core.NewValidationError("email", "email is required")
	}
	contact, found, err := r.find(ctx, "email", email, r.contacts.FindByEmail)
	if err != nil {
		return core.Contact{}, err
	}
	if !found {
		return core.Contact{}, core.NewNotFoundError("contact", email)
	}
	return contact, nil
}

func (r *Resolver) FindByPhone(ctx context.Context, phone string) (core.Contact, error) {
	if err := r.ready(); err != nil {
		return core.Contact{}, err
	}
	digits := r.phones.Canonical(phone)
	if digits == "" {
		return core.Contact{}, core.NewValidationError("phone", "phone is required")
	}
	contact, found, err := r.find(ctx, "phone", digits, r.contacts.FindByPhone)
	if err != nil {
		return core.Contact{}, err
	}
	if !found {
		return core.Contact{}, core.NewNotFoundError("contact", r.phones.Normalize(phone))
	}
	return contact, nil
}

func (r *Resolver) Delete(ctx context.Context, id int64) error {
	contact, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.contacts.Delete(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewNotFoundError("contact", strconv.FormatInt(id, 10))
		}
		return core.NewPersistenceError(err, "contacts: delete contact failed")
	}
	core.LogWithLevel(ctx, r.logger, "info", "contact deleted", map[string]any{"contact_id": id})
	r.events.Publish(ctx, core.ContactDeletedPayload{ContactID: contact.ID, Email: contact.Email})
	return nil
}

func (r *Resolver) prepare(identity core.ContactIdentity) (identityInput, error) {
	input := identityInput{
		email:        normalize.Email(identity.Email),
		firstName:    strings.TrimSpace(identity.FirstName),
		lastName:     strings.TrimSpace(identity.LastName),
		tags:         identity.Tags,
		meta:         identity.Meta,
		phoneClaimed: true,
	}
	phone := strings.TrimSpace(identity.Phone)
	if input.email == "" && phone == "" {
		return identityInput{}, core.NewValidationError("email", "email or phone is required")
	}
	if input.email != "" {
		if err := normalize.ValidateEmail(input.email); err != nil {
			return identityInput{}, core.NewValidationError("email", "email is invalid")
		}
	}
	if phone != "" {
		if err := r.phones.Validate(phone); err != nil {
			return identityInput{}, core.NewValidationError("phone", phoneMessage(err))
		}
		input.phone = r.phones.Normalize(phone)
		input.phoneDigits = r.phones.Canonical(phone)
	}
	return input, nil
}

func (r *Resolver) ready() error {
	if r == nil || r.contacts == nil || r.tags == nil {
		return fmt.Errorf("contacts: resolver is not configured")
	}
	return nil
}

func phoneMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "normalize: ")
}

func cleanTagNames(names []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func appendOnce(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
