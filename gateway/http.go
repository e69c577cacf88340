package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/command"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/query"
	"github.com/goliatone/go-crmsync/ratelimit"
	"github.com/goliatone/go-crmsync/webhooks"
)

const (
	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"

	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-GH-API-KEY"
)

// API serves the gateway operations under /wp-json/<namespace>.
type API struct {
	gateway  *Gateway
	handlers Handlers
	cfg      core.Config
	logger   core.Logger
}

func NewAPI(gateway *Gateway, handlers Handlers, cfg core.Config, logger core.Logger) *API {
	return &API{
		gateway:  gateway,
		handlers: handlers,
		cfg:      cfg,
		logger:   core.ResolveLogger("crmsync.http", nil, logger),
	}
}

func (a *API) BasePath() string {
	namespace := strings.Trim(strings.TrimSpace(a.cfg.API.Namespace), "/")
	if namespace == "" {
		namespace = core.DefaultConfig().API.Namespace
	}
	return "/wp-json/" + namespace
}

func (a *API) Handler() http.Handler {
	base := a.BasePath()
	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+base+path, fn)
	}

	route("GET /verify-connection", a.verifyConnection)
	route("POST /quick-contact-sync", a.quickContactSync)
	route("POST /quick-contact-sync-phone", a.quickContactSyncPhone)
	route("GET /contacts", a.listContacts)
	route("POST /contact", a.createContact)
	route("GET /contact/{id}", a.getContact)
	route("PUT /contact/{id}", a.updateContact)
	route("DELETE /contact/{id}", a.deleteContact)
	route("POST /contact/{id}/tags", a.applyTags)
	route("DELETE /contact/{id}/tags", a.removeTags)
	route("GET /contact-by-phone/{phone}", a.contactByPhone)
	route("GET /contact-activity/{email}", a.contactActivity)
	route("GET /contact-notes/{email}", a.contactNotes)
	route("POST /contact-notes/{email}", a.addContactNote)
	route("GET /custom-fields", a.customFields)
	route("POST /submit-form", a.submitForm)
	route("POST /webhooks/test", a.testWebhook)
	route("GET /webhooks/logs", a.deliveryLogs)
	route("DELETE /webhooks/logs", a.purgeDeliveryLogs)
	route("GET /webhooks/stats", a.deliveryStats)
	route("GET /webhooks/event-types", a.deliveryEventTypes)

	return a.cors(mux)
}

func (a *API) verifyConnection(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "verify_connection"}, func(context.Context) (any, error) {
		return map[string]string{
			"status":  "success",
			"message": "Connection verified",
			"version": a.cfg.API.PluginVersion,
		}, nil
	})
}

type syncBody struct {
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Tags      []string          `json:"tags"`
	Meta      map[string]string `json:"meta"`
}

func (b syncBody) identity() core.ContactIdentity {
	return core.ContactIdentity{
		Email:     b.Email,
		Phone:     b.Phone,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Tags:      b.Tags,
		Meta:      b.Meta,
	}
}

func (a *API) quickContactSync(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "quick_contact_sync"}, func(ctx context.Context) (any, error) {
		var body syncBody
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.Email) == "" {
			return nil, core.NewValidationError("email", "email is required")
		}
		return runCommand[contacts.SyncResult](ctx, a.handlers.ResolveContact.Execute, command.ResolveContactMessage{Identity: body.identity()})
	})
}

func (a *API) quickContactSyncPhone(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "quick_contact_sync_phone"}, func(ctx context.Context) (any, error) {
		var body syncBody
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.Phone) == "" {
			return nil, core.NewValidationError("phone", "phone is required")
		}
		return runCommand[contacts.SyncResult](ctx, a.handlers.ResolveContact.Execute, command.ResolveContactMessage{Identity: body.identity()})
	})
}

func (a *API) createContact(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "create_contact"}, func(ctx context.Context) (any, error) {
		var body syncBody
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		return runCommand[contacts.SyncResult](ctx, a.handlers.ResolveContact.Execute, command.ResolveContactMessage{Identity: body.identity()})
	})
}

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	params := map[string]any{
		"page":     values.Get("page"),
		"per_page": values.Get("per_page"),
		"search":   values.Get("search"),
		"tag_id":   values.Get("tag_id"),
		"orderby":  values.Get("orderby"),
		"order":    values.Get("order"),
	}
	a.serve(w, r, Request{Operation: "contacts", Params: params, Cacheable: true}, func(ctx context.Context) (any, error) {
		page, err := intParam(values.Get("page"), "page")
		if err != nil {
			return nil, err
		}
		perPage, err := intParam(values.Get("per_page"), "per_page")
		if err != nil {
			return nil, err
		}
		tagID, err := int64Param(values.Get("tag_id"), "tag_id")
		if err != nil {
			return nil, err
		}
		return runQuery(ctx, a.handlers.ListContacts.Query, query.ListContactsMessage{Filter: core.ContactListFilter{
			Page:    page,
			PerPage: perPage,
			Search:  values.Get("search"),
			TagID:   tagID,
			OrderBy: values.Get("orderby"),
			Order:   values.Get("order"),
		}})
	})
}

func (a *API) getContact(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "get_contact"}, func(ctx context.Context) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		return runQuery(ctx, a.handlers.GetContact.Query, query.GetContactMessage{ContactID: id})
	})
}

func (a *API) updateContact(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "update_contact"}, func(ctx context.Context) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		var patch core.ContactPatch
		if err := decodeBody(r, &patch); err != nil {
			return nil, err
		}
		return runCommand[core.Contact](ctx, a.handlers.UpdateContact.Execute, command.UpdateContactMessage{ContactID: id, Patch: patch})
	})
}

func (a *API) deleteContact(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "delete_contact"}, func(ctx context.Context) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		if _, err := runCommand[struct{}](ctx, a.handlers.DeleteContact.Execute, command.DeleteContactMessage{ContactID: id}); err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "deleted": true, "contact_id": id}, nil
	})
}

type tagsBody struct {
	Tags []string `json:"tags"`
}

func (a *API) applyTags(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "apply_tags"}, func(ctx context.Context) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		var body tagsBody
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		tags, err := runCommand[[]core.Tag](ctx, a.handlers.ApplyTags.Execute, command.ApplyTagsMessage{ContactID: id, Tags: body.Tags})
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "contact_id": id, "tags": nonNilTags(tags)}, nil
	})
}

func (a *API) removeTags(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "remove_tags"}, func(ctx context.Context) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		var body tagsBody
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		tags, err := runCommand[[]core.Tag](ctx, a.handlers.RemoveTags.Execute, command.RemoveTagsMessage{ContactID: id, Tags: body.Tags})
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "contact_id": id, "tags": nonNilTags(tags)}, nil
	})
}

func (a *API) contactByPhone(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "contact_by_phone"}, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.ContactByPhone.Query, query.ContactByPhoneMessage{Phone: r.PathValue("phone")})
	})
}

func (a *API) contactActivity(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PathValue("email"))
	req := Request{Operation: "contact_activity", Params: map[string]any{"email": strings.ToLower(email)}, Cacheable: true}
	a.serve(w, r, req, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.ContactActivity.Query, query.ContactActivityMessage{Email: email})
	})
}

func (a *API) contactNotes(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "contact_notes"}, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.ContactNotes.Query, query.ContactNotesMessage{Email: r.PathValue("email")})
	})
}

func (a *API) addContactNote(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "add_contact_note"}, func(ctx context.Context) (any, error) {
		var input contacts.NoteInput
		if err := decodeBody(r, &input); err != nil {
			return nil, err
		}
		note, err := runCommand[core.Note](ctx, a.handlers.AddNote.Execute, command.AddNoteMessage{Email: r.PathValue("email"), Note: input})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"status":     "success",
			"note_id":    note.ID,
			"contact_id": note.ContactID,
			"content":    note.Content,
			"type":       note.Type,
			"owner":      note.Owner,
			"date":       note.CreatedAt,
		}, nil
	})
}

func (a *API) customFields(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "custom_fields", Cacheable: true}, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.CustomFields.Query, query.CustomFieldsMessage{})
	})
}

// submitForm accepts the flat form post: tags, custom_fields and form_id are
// lifted out and every other scalar field becomes form data.
func (a *API) submitForm(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "submit_form"}, func(ctx context.Context) (any, error) {
		var raw map[string]any
		if err := decodeBody(r, &raw); err != nil {
			return nil, err
		}
		submission, err := formSubmission(raw)
		if err != nil {
			return nil, err
		}
		return runCommand[contacts.FormResult](ctx, a.handlers.SubmitForm.Execute, command.SubmitFormMessage{Submission: submission})
	})
}

func (a *API) testWebhook(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "webhook_test"}, func(ctx context.Context) (any, error) {
		var body struct {
			Event string `json:"event"`
		}
		if err := decodeBody(r, &body); err != nil {
			return nil, err
		}
		result, err := runCommand[webhooks.Result](ctx, a.handlers.SendTestWebhook.Execute, command.SendTestWebhookMessage{Event: body.Event})
		if err != nil {
			return nil, err
		}
		status := "success"
		if result.Skipped {
			status = "skipped"
		}
		return map[string]any{
			"status":     status,
			"event_type": result.EventType,
			"code":       result.StatusCode,
			"response":   result.Response,
			"reason":     result.Reason,
		}, nil
	})
}

func (a *API) deliveryLogs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	a.serve(w, r, Request{Operation: "webhook_logs"}, func(ctx context.Context) (any, error) {
		page, err := intParam(values.Get("page"), "page")
		if err != nil {
			return nil, err
		}
		perPage, err := intParam(values.Get("per_page"), "per_page")
		if err != nil {
			return nil, err
		}
		from, err := dateParam(values.Get("date_from"), "date_from")
		if err != nil {
			return nil, err
		}
		to, err := dateParam(values.Get("date_to"), "date_to")
		if err != nil {
			return nil, err
		}
		return runQuery(ctx, a.handlers.DeliveryLog.Query, query.DeliveryLogMessage{Filter: core.DeliveryLogFilter{
			Page:      page,
			PageSize:  perPage,
			EventType: values.Get("event_type"),
			Outcome:   core.DeliveryOutcome(strings.ToLower(strings.TrimSpace(values.Get("status")))),
			DateFrom:  from,
			DateTo:    to,
		}})
	})
}

func (a *API) purgeDeliveryLogs(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "webhook_logs_purge"}, func(ctx context.Context) (any, error) {
		maxAge := a.cfg.Retention.DeliveryLogMaxAge
		if raw := r.URL.Query().Get("older_than_days"); raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil || days <= 0 {
				return nil, core.NewValidationError("older_than_days", "must be a positive integer")
			}
			maxAge = time.Duration(days) * 24 * time.Hour
		}
		removed, err := runCommand[int](ctx, a.handlers.PurgeDeliveryLog.Execute, command.PurgeDeliveryLogMessage{MaxAge: maxAge})
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "deleted": removed}, nil
	})
}

func (a *API) deliveryStats(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "webhook_stats"}, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.DeliveryStats.Query, query.DeliveryStatsMessage{})
	})
}

func (a *API) deliveryEventTypes(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, Request{Operation: "webhook_event_types"}, func(ctx context.Context) (any, error) {
		return runQuery(ctx, a.handlers.DeliveryEventTypes.Query, query.DeliveryEventTypesMessage{})
	})
}

func (a *API) serve(w http.ResponseWriter, r *http.Request, req Request, op Operation) {
	req.APIKey = r.Header.Get(a.keyHeader())
	body, err := a.gateway.Execute(r.Context(), req, op)
	if err != nil {
		a.writeError(w, r, req.Operation, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type errorData struct {
	Status int `json:"status"`
}

type errorResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	mapped := core.MapError(err)
	status := mapped.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	var throttled ratelimit.ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(throttled.RetryAfter.Seconds()))))
	}
	level := "warn"
	if status >= http.StatusInternalServerError {
		level = "error"
	}
	core.LogWithLevel(r.Context(), a.logger, level, "request failed", map[string]any{
		"operation": operation,
		"method":    r.Method,
		"path":      r.URL.Path,
		"status":    status,
		"code":      mapped.TextCode,
		"error":     err.Error(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    mapped.TextCode,
		Message: mapped.Message,
		Data:    errorData{Status: status},
	})
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && a.originAllowed(origin) {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Allow-Methods", corsMethods)
			header.Set("Access-Control-Allow-Headers", corsHeaders)
			header.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) originAllowed(origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	for _, allowed := range a.cfg.CORS.AllowedOrigins {
		allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (a *API) keyHeader() string {
	if header := strings.TrimSpace(a.cfg.API.KeyHeader); header != "" {
		return header
	}
	return core.DefaultConfig().API.KeyHeader
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return core.NewValidationError("body", "request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "request body is required")
		}
		return core.NewValidationError("body", "request body must be valid JSON")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", "contact id must be a positive integer")
	}
	return id, nil
}

func intParam(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, core.NewValidationError(field, fmt.Sprintf("%s must be a non-negative integer", field))
	}
	return value, nil
}

func int64Param(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, core.NewValidationError(field, fmt.Sprintf("%s must be a non-negative integer", field))
	}
	return value, nil
}

func dateParam(raw string, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, core.NewValidationError(field, field+" must use YYYY-MM-DD")
	}
	return &value, nil
}

func formSubmission(raw map[string]any) (core.FormSubmission, error) {
	submission := core.FormSubmission{Data: map[string]string{}}
	for key, value := range raw {
		switch key {
		case "form_id":
			submission.FormID = scalarString(value)
		case "tags":
			items, ok := value.([]any)
			if !ok {
				return core.FormSubmission{}, core.NewValidationError("tags", "tags must be a list")
			}
			for _, item := range items {
				if name := scalarString(item); name != "" {
					submission.Tags = append(submission.Tags, name)
				}
			}
		case "custom_fields":
			fields, ok := value.(map[string]any)
			if !ok {
				return core.FormSubmission{}, core.NewValidationError("custom_fields", "custom_fields must be an object")
			}
			submission.CustomFields = make(map[string]string, len(fields))
			for field, fieldValue := range fields {
				submission.CustomFields[field] = scalarString(fieldValue)
			}
		default:
			if text := scalarString(value); text != "" {
				submission.Data[key] = text
			}
		}
	}
	return submission, nil
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func nonNilTags(tags []core.Tag) []core.Tag {
	if tags == nil {
		return []core.Tag{}
	}
	return tags
}
