package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crmsync/core"
	"github.com/google/uuid"
)

const JobIDDispatch = "crmsync.webhook.dispatch"

// SyncSink dispatches inline. Dispatch failures are logged and recorded but
// never reach the operation that raised the event.
type SyncSink struct {
	Dispatcher *Dispatcher
}

func (s SyncSink) Publish(ctx context.Context, payload core.EventPayload) {
	if s.Dispatcher == nil || payload == nil {
		return
	}
	_, _ = s.Dispatcher.Dispatch(ctx, s.Dispatcher.NewEvent(payload))
}

// QueueSink stamps events and hands them to a job queue for DeliveryWorker.
type QueueSink struct {
	Enqueuer core.JobEnqueuer
	SiteURL  string
	Logger   core.Logger
	Now      func() time.Time
}

func (s QueueSink) Publish(ctx context.Context, payload core.EventPayload) {
	if s.Enqueuer == nil || payload == nil {
		return
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	msg, err := EncodeJob(core.NewWebhookEvent(payload, s.SiteURL, now))
	if err == nil {
		err = s.Enqueuer.Enqueue(ctx, msg)
	}
	if err != nil {
		core.LogWithLevel(ctx, s.Logger, "error", "webhook enqueue failed", map[string]any{
			"event_type": payload.EventKind(),
			"error":      err.Error(),
		})
	}
}

// EncodeJob packs event into a job message keyed by a fresh idempotency key.
func EncodeJob(event core.WebhookEvent) (*core.JobExecutionMessage, error) {
	if event.Payload == nil {
		return nil, fmt.Errorf("webhooks: event payload is required")
	}
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("webhooks: encode payload: %w", err)
	}
	return &core.JobExecutionMessage{
		JobID: JobIDDispatch,
		Parameters: map[string]any{
			"event_type": string(event.Type()),
			"payload":    string(raw),
			"site":       event.SiteIdentity,
			"timestamp":  event.Timestamp.UTC().Format(time.RFC3339Nano),
		},
		IdempotencyKey: uuid.NewString(),
	}, nil
}

// DecodeJob restores the event packed by EncodeJob.
func DecodeJob(msg *core.JobExecutionMessage) (core.WebhookEvent, error) {
	if msg == nil {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDDispatch {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: unexpected job id %q", msg.JobID)
	}
	kindValue, _ := msg.Parameters["event_type"].(string)
	kind, ok := core.ParseEventKind(kindValue)
	if !ok {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: unknown event type %q", kindValue)
	}
	raw, _ := msg.Parameters["payload"].(string)
	payload, err := DecodePayload(kind, []byte(raw))
	if err != nil {
		return core.WebhookEvent{}, err
	}
	site, _ := msg.Parameters["site"].(string)
	var at time.Time
	if stamp, _ := msg.Parameters["timestamp"].(string); stamp != "" {
		at, err = time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			return core.WebhookEvent{}, fmt.Errorf("webhooks: decode timestamp: %w", err)
		}
	}
	return core.NewWebhookEvent(payload, site, at), nil
}

// DeliveryWorker drains webhook jobs. Each job is dispatched exactly once:
// delivered jobs are acked, failed deliveries are nacked without requeue
// (the attempt is already in the delivery log) and jobs that cannot be
// decoded are dead lettered.
type DeliveryWorker struct {
	Queue      core.JobDequeuer
	Dispatcher *Dispatcher
	Hook       core.JobWorkerHook
	Logger     core.Logger
}

func (w *DeliveryWorker) Run(ctx context.Context) error {
	if w == nil || w.Queue == nil || w.Dispatcher == nil {
		return fmt.Errorf("webhooks: delivery worker is not configured")
	}
	for {
		err := w.ProcessOne(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			core.LogWithLevel(ctx, w.Logger, "warn", "webhook job failed", map[string]any{"error": err.Error()})
		}
	}
}

func (w *DeliveryWorker) ProcessOne(ctx context.Context) error {
	if w == nil || w.Queue == nil || w.Dispatcher == nil {
		return fmt.Errorf("webhooks: delivery worker is not configured")
	}
	delivery, err := w.Queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	started := time.Now()
	event := core.JobWorkerEvent{Message: msg, Attempt: 1, StartedAt: started}
	w.hook(func(h core.JobWorkerHook) { h.OnStart(ctx, event) })

	webhookEvent, decodeErr := DecodeJob(msg)
	if decodeErr != nil {
		event.Err, event.Duration = decodeErr, time.Since(started)
		w.hook(func(h core.JobWorkerHook) { h.OnFailure(ctx, event) })
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: decodeErr.Error()}); nackErr != nil {
			return errors.Join(decodeErr, nackErr)
		}
		return decodeErr
	}

	_, dispatchErr := w.Dispatcher.Dispatch(ctx, webhookEvent)
	event.Err, event.Duration = dispatchErr, time.Since(started)
	if dispatchErr != nil {
		w.hook(func(h core.JobWorkerHook) { h.OnFailure(ctx, event) })
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{Reason: dispatchErr.Error()}); nackErr != nil {
			return errors.Join(dispatchErr, nackErr)
		}
		return dispatchErr
	}
	w.hook(func(h core.JobWorkerHook) { h.OnSuccess(ctx, event) })
	return delivery.Ack(ctx)
}

func (w *DeliveryWorker) hook(fn func(core.JobWorkerHook)) {
	if w.Hook != nil {
		fn(w.Hook)
	}
}

var ErrQueueFull = errors.New("webhooks: queue is full")

// MemoryQueue is a bounded in-process job queue for single node deployments.
type MemoryQueue struct {
	ch         chan *core.JobExecutionMessage
	mu         sync.Mutex
	deadLetter []*core.JobExecutionMessage
	failed     []*core.JobExecutionMessage
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{ch: make(chan *core.JobExecutionMessage, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("webhooks: queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("webhooks: job message is required")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("webhooks: queue is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-q.ch:
		return &memoryDelivery{queue: q, msg: msg}, nil
	}
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

func (q *MemoryQueue) DeadLetters() []*core.JobExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*core.JobExecutionMessage(nil), q.deadLetter...)
}

// Failed lists jobs nacked with neither requeue nor dead letter.
func (q *MemoryQueue) Failed() []*core.JobExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*core.JobExecutionMessage(nil), q.failed...)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *core.JobExecutionMessage
}

func (d *memoryDelivery) Message() *core.JobExecutionMessage { return d.msg }

func (d *memoryDelivery) Ack(context.Context) error { return nil }

func (d *memoryDelivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	switch {
	case opts.DeadLetter:
		d.queue.mu.Lock()
		d.queue.deadLetter = append(d.queue.deadLetter, d.msg)
		d.queue.mu.Unlock()
		return nil
	case opts.Requeue:
		return d.queue.Enqueue(ctx, d.msg)
	default:
		d.queue.mu.Lock()
		d.queue.failed = append(d.queue.failed, d.msg)
		d.queue.mu.Unlock()
		return nil
	}
}

var (
	_ core.EventSink   = SyncSink{}
	_ core.EventSink   = QueueSink{}
	_ core.JobEnqueuer = (*MemoryQueue)(nil)
	_ core.JobDequeuer = (*MemoryQueue)(nil)
)
