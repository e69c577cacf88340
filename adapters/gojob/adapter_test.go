package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	original, err := webhooks.EncodeJob(core.NewWebhookEvent(core.TagAppliedPayload{
		ContactID: 7,
		Email:     "ada@example.com",
		TagID:     3,
		TagName:   "vip",
	}, "https://crm.example.com", at))
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	original.DedupPolicy = "drop"

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	if converted.JobID != JobIDWebhookDispatch {
		t.Fatalf("expected job id %q, got %q", JobIDWebhookDispatch, converted.JobID)
	}
	if converted.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("expected dedup policy to map, got %q", converted.DedupPolicy)
	}

	roundTrip := FromExecutionMessage(converted)
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	event, err := webhooks.DecodeJob(roundTrip)
	if err != nil {
		t.Fatalf("decode mapped job: %v", err)
	}
	payload, ok := event.Payload.(core.TagAppliedPayload)
	if !ok || payload.TagName != "vip" || payload.ContactID != 7 {
		t.Fatalf("expected tag payload to survive mapping, got %#v", event.Payload)
	}
	if !event.Timestamp.Equal(at) {
		t.Fatalf("expected timestamp %s, got %s", at, event.Timestamp)
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &core.JobExecutionMessage{
		JobID:          JobIDWebhookDispatch,
		Parameters:     map[string]any{"event_type": "contact.created"},
		IdempotencyKey: "idem-1",
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDWebhookDispatch {
		t.Fatalf("expected mapped go-job message")
	}
	if err := enqueueAdapter.Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected nil message to be rejected")
	}

	raw := &stubQueueDelivery{msg: enqueuer.last}
	dequeueAdapter := NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}, FireOnce())
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.IdempotencyKey != "idem-1" {
		t.Fatalf("expected mapped core message, got %#v", got)
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !raw.acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestEnqueueWithReceiptReturnsDispatchID(t *testing.T) {
	at := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	enqueuer := &stubQueueEnqueuer{receipt: queue.EnqueueReceipt{DispatchID: "dispatch-9", EnqueuedAt: at}}
	adapter := NewEnqueuerAdapter(enqueuer)
	adapter.Logger = &recordingLogger{}

	msg := &core.JobExecutionMessage{JobID: JobIDWebhookDispatch, IdempotencyKey: "idem-2"}
	receipt, err := adapter.EnqueueWithReceipt(context.Background(), msg)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if receipt.DispatchID != "dispatch-9" || !receipt.EnqueuedAt.Equal(at) {
		t.Fatalf("expected receipt to pass through, got %#v", receipt)
	}

	if err := adapter.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	logger := adapter.Logger.(*recordingLogger)
	if len(logger.debug) != 1 || !strings.Contains(fmt.Sprint(logger.debug[0]), "dispatch-9") {
		t.Fatalf("expected dispatch id to be logged, got %#v", logger.debug)
	}

	enqueuer.err = errors.New("broker down")
	if _, err := adapter.EnqueueWithReceipt(context.Background(), msg); err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected enqueue error to surface, got %v", err)
	}
}

func TestNackDispositionRoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		opts        core.JobNackOptions
		disposition queue.NackDisposition
		want        core.JobNackOptions
	}{
		{
			name:        "dead letter",
			opts:        core.JobNackOptions{DeadLetter: true, Requeue: true, Delay: time.Second, Reason: "bad payload"},
			disposition: queue.NackDispositionDeadLetter,
			want:        core.JobNackOptions{DeadLetter: true, Reason: "bad payload"},
		},
		{
			name:        "retry",
			opts:        core.JobNackOptions{Requeue: true, Delay: 5 * time.Second, Reason: "timeout"},
			disposition: queue.NackDispositionRetry,
			want:        core.JobNackOptions{Requeue: true, Delay: 5 * time.Second, Reason: "timeout"},
		},
		{
			name:        "failed",
			opts:        core.JobNackOptions{Delay: time.Second, Reason: "gave up"},
			disposition: queue.NackDispositionFailed,
			want:        core.JobNackOptions{Reason: "gave up"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := ToNackOptions(tc.opts)
			if mapped.Disposition != tc.disposition {
				t.Fatalf("expected disposition %q, got %q", tc.disposition, mapped.Disposition)
			}
			if back := FromNackOptions(mapped); back != tc.want {
				t.Fatalf("expected %#v, got %#v", tc.want, back)
			}

			raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookDispatch}}
			adapter := NewDeliveryAdapter(raw, NackPolicy{MaxAttempts: 3})
			if err := adapter.Nack(context.Background(), tc.opts); err != nil {
				t.Fatalf("nack: %v", err)
			}
			if raw.nackOpts.Disposition != tc.disposition {
				t.Fatalf("expected delivery nacked with %q, got %q", tc.disposition, raw.nackOpts.Disposition)
			}
		})
	}
}

func TestDequeueAdapterPropagatesErrors(t *testing.T) {
	adapter := NewDequeuerAdapter(&stubQueueDequeuer{err: context.Canceled}, FireOnce())
	if _, err := adapter.Dequeue(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected dequeue error to pass through, got %v", err)
	}
}

func TestNackPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookDispatch}}
	adapter := NewDeliveryAdapter(raw, NackPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  " transient ",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if raw.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", raw.nackOpts.Delay)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry before max attempts, got %q", raw.nackOpts.Disposition)
	}
	if raw.nackOpts.Reason != "transient" {
		t.Fatalf("expected trimmed reason, got %q", raw.nackOpts.Reason)
	}

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{Delay: time.Second, Requeue: true}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected dead letter once max attempts is reached, got %#v", raw.nackOpts)
	}
	if raw.nackOpts.Delay != 0 {
		t.Fatalf("expected no delay without requeue, got %s", raw.nackOpts.Delay)
	}
}

func TestFireOnceNeverRequeues(t *testing.T) {
	ctx := context.Background()
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookDispatch}}
	adapter := NewDeliveryAdapter(raw, FireOnce())

	if err := adapter.Nack(ctx, core.JobNackOptions{Requeue: true, Delay: time.Second}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionDeadLetter {
		t.Fatalf("expected fire-once policy to dead letter, got %q", raw.nackOpts.Disposition)
	}
}

func TestZeroPolicyDropsNackedJobs(t *testing.T) {
	out := NackPolicy{}.Normalize(core.JobNackOptions{Requeue: true, Delay: -time.Second}, 1)
	if out.Requeue || out.DeadLetter || out.Delay != 0 {
		t.Fatalf("expected plain drop, got %#v", out)
	}
	out = NackPolicy{}.Normalize(core.JobNackOptions{DeadLetter: true, Requeue: true}, 1)
	if out.Requeue || !out.DeadLetter {
		t.Fatalf("expected explicit dead letter to win, got %#v", out)
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Delivery: &stubQueueDelivery{msg: &job.ExecutionMessage{
			JobID:          JobIDWebhookDispatch,
			IdempotencyKey: "idem-hook",
		}},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("upstream 502"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnFailure(context.Background(), evt)
	if coreHook.last.Message == nil || coreHook.last.Message.IdempotencyKey != "idem-hook" {
		t.Fatalf("expected message mapped from delivery, got %#v", coreHook.last.Message)
	}
	if coreHook.last.Attempt != 2 || coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected attempt and delay mapping, got %#v", coreHook.last)
	}
	if coreHook.last.Duration != 250*time.Millisecond || coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected timing mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "upstream 502" {
		t.Fatalf("expected error mapping")
	}
	if coreHook.calls != 1 {
		t.Fatalf("expected one hook call, got %d", coreHook.calls)
	}
}

func TestEventFieldsCarryWebhookContext(t *testing.T) {
	fields := eventFields(core.JobWorkerEvent{
		Message: &core.JobExecutionMessage{
			JobID:          JobIDWebhookDispatch,
			IdempotencyKey: "idem-log",
			Parameters:     map[string]any{"event_type": "note.added"},
		},
		Attempt:  1,
		Duration: 1500 * time.Millisecond,
		Err:      errors.New("timeout"),
	})
	if fields["event_type"] != "note.added" {
		t.Fatalf("expected event_type field, got %#v", fields)
	}
	if fields["duration_ms"] != int64(1500) {
		t.Fatalf("expected duration_ms 1500, got %#v", fields["duration_ms"])
	}
	if fields["error"] != "timeout" {
		t.Fatalf("expected error field, got %#v", fields["error"])
	}
	NewLogHook(nil).OnFailure(context.Background(), core.JobWorkerEvent{})
}

type stubQueueEnqueuer struct {
	last    *job.ExecutionMessage
	receipt queue.EnqueueReceipt
	err     error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	s.last = msg
	return s.receipt, s.err
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
	err      error
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last  core.JobWorkerEvent
	calls int
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
	h.calls++
}

type recordingLogger struct {
	debug [][]any
}

func (l *recordingLogger) Trace(string, ...any) {}
func (l *recordingLogger) Debug(msg string, args ...any) {
	l.debug = append(l.debug, append([]any{msg}, args...))
}
func (l *recordingLogger) Info(string, ...any)                     {}
func (l *recordingLogger) Warn(string, ...any)                     {}
func (l *recordingLogger) Error(string, ...any)                    {}
func (l *recordingLogger) Fatal(string, ...any)                    {}
func (l *recordingLogger) WithContext(context.Context) core.Logger { return l }
