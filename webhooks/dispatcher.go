package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

const (
	DefaultTimeout  = 5 * time.Second
	MaxResponseBody = 64 << 10

	HeaderEvent     = "X-Groundhogg-Event"
	HeaderSite      = "X-Groundhogg-Site"
	HeaderTimestamp = "X-Groundhogg-Timestamp"
	HeaderTest      = "X-Groundhogg-Test"

	SkipNoURL    = "webhook url is not configured"
	SkipDisabled = "event type is disabled"
)

type Result struct {
	Skipped    bool                   `json:"skipped"`
	Reason     string                 `json:"reason,omitempty"`
	EventType  string                 `json:"event_type"`
	StatusCode int                    `json:"code,omitempty"`
	Response   string                 `json:"response,omitempty"`
	Record     core.DeliveryLogRecord `json:"-"`
}

type Dispatcher struct {
	Config        core.WebhookConfig
	SiteURL       string
	PluginVersion string
	Client        *http.Client
	Log           core.DeliveryLog
	Logger        core.Logger
	Now           func() time.Time
}

func NewDispatcher(cfg core.Config, log core.DeliveryLog, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		Config:        cfg.Webhook,
		SiteURL:       strings.TrimSpace(cfg.API.SiteURL),
		PluginVersion: strings.TrimSpace(cfg.API.PluginVersion),
		Client:        &http.Client{},
		Log:           log,
		Logger:        core.ResolveLogger("crmsync.webhooks", nil, logger),
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewEvent stamps payload with this site's identity and the current time.
func (d *Dispatcher) NewEvent(payload core.EventPayload) core.WebhookEvent {
	return core.NewWebhookEvent(payload, d.SiteURL, d.now())
}

// Dispatch sends event once. A missing URL or a disabled event type is a
// skipped no-op. Every attempt is recorded before Dispatch returns; failed
// attempts return a dispatch_failed error.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.WebhookEvent) (Result, error) {
	return d.send(ctx, event, false)
}

// SendTest fires a synthetic payload for kind regardless of the enabled map.
func (d *Dispatcher) SendTest(ctx context.Context, kind core.EventKind) (Result, error) {
	if d == nil {
		return Result{}, fmt.Errorf("webhooks: dispatcher is not configured")
	}
	if _, ok := core.ParseEventKind(string(kind)); !ok {
		return Result{}, core.NewValidationError("event", "unknown event type")
	}
	payload, err := SamplePayload(kind, d.now())
	if err != nil {
		return Result{}, core.NewValidationError("event", err.Error())
	}
	return d.send(ctx, d.NewEvent(payload), true)
}

func (d *Dispatcher) send(ctx context.Context, event core.WebhookEvent, test bool) (Result, error) {
	if d == nil {
		return Result{}, fmt.Errorf("webhooks: dispatcher is not configured")
	}
	if event.Payload == nil {
		return Result{}, fmt.Errorf("webhooks: event payload is required")
	}
	kind := event.Type()
	result := Result{EventType: string(kind)}

	target := strings.TrimSpace(d.Config.URL)
	if target == "" {
		result.Skipped, result.Reason = true, SkipNoURL
		return result, nil
	}
	if !test && !d.Config.Enabled(kind) {
		core.LogWithLevel(ctx, d.Logger, "debug", "webhook event skipped", map[string]any{"event_type": kind})
		result.Skipped, result.Reason = true, SkipDisabled
		return result, nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}
	if strings.TrimSpace(event.SiteIdentity) == "" {
		event.SiteIdentity = d.SiteURL
	}

	body, err := encodeBody(event, d.PluginVersion, test)
	if err != nil {
		return result, err
	}
	attempt := core.DeliveryAttempt{
		EventType: string(kind),
		TargetURL: target,
		Payload:   body,
		Timestamp: d.now(),
	}

	code, responseBody, sendErr := d.post(ctx, target, event, body, test)
	if sendErr != nil {
		attempt.ErrorMessage = sendErr.Error()
	} else {
		attempt.ResponseCode = &code
		attempt.ResponseBody = responseBody
	}
	result.StatusCode = code
	result.Response = responseBody

	record, recordErr := d.record(ctx, attempt)
	result.Record = record

	fields := map[string]any{"event_type": kind, "test": test}
	switch {
	case sendErr != nil:
		fields["error"] = sendErr.Error()
		core.LogWithLevel(ctx, d.Logger, "warn", "webhook delivery failed", fields)
		return result, core.NewDispatchError(sendErr, "webhook delivery failed", map[string]any{"event_type": string(kind)})
	case code < http.StatusOK || code >= http.StatusMultipleChoices:
		fields["status"] = code
		core.LogWithLevel(ctx, d.Logger, "warn", "webhook received non-2xx response", fields)
		return result, core.NewDispatchError(nil, "webhook failed (HTTP "+strconv.Itoa(code)+")", map[string]any{
			"event_type": string(kind),
			"status":     code,
		})
	}
	core.LogWithLevel(ctx, d.Logger, "debug", "webhook delivered", fields)
	if recordErr != nil {
		return result, recordErr
	}
	return result, nil
}

func (d *Dispatcher) post(ctx context.Context, target string, event core.WebhookEvent, body []byte, test bool) (int, string, error) {
	timeout := d.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(event.Type()))
	req.Header.Set(HeaderSite, event.SiteIdentity)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(event.Timestamp.Unix(), 10))
	if test {
		req.Header.Set(HeaderTest, "true")
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("webhooks: read response: %w", err)
	}
	return resp.StatusCode, string(payload), nil
}

func (d *Dispatcher) record(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryLogRecord, error) {
	if d.Log == nil {
		return core.DeliveryLogRecord{}, nil
	}
	record, err := d.Log.Record(ctx, attempt)
	if err != nil {
		core.LogWithLevel(ctx, d.Logger, "error", "delivery log write failed", map[string]any{
			"event_type": attempt.EventType,
			"error":      err.Error(),
		})
		return core.DeliveryLogRecord{}, core.NewPersistenceError(err, "webhooks: record delivery failed")
	}
	return record, nil
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}
