package webhooks

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-crmsync/core"
)

type countingHook struct {
	mu        sync.Mutex
	started   int
	succeeded int
	failed    int
}

func (h *countingHook) OnStart(context.Context, core.JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started++
}

func (h *countingHook) OnSuccess(context.Context, core.JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.succeeded++
}

func (h *countingHook) OnFailure(context.Context, core.JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed++
}

func (h *countingHook) OnRetry(context.Context, core.JobWorkerEvent) {}

func TestSyncSink_SwallowsDispatchFailures(t *testing.T) {
	sink := newSinkServer(t, http.StatusServiceUnavailable, "")
	log := NewMemoryDeliveryLog()
	dispatcher := newTestDispatcher(sink.URL, log)

	SyncSink{Dispatcher: dispatcher}.Publish(context.Background(), core.FormSubmittedPayload{ContactID: 1, FormID: "f"})

	stats, _ := log.Stats(context.Background())
	if stats.Total != 1 || stats.ErrorCount != 1 {
		t.Fatalf("expected failed attempt recorded, got %+v", stats)
	}
}

func TestQueueSink_WorkerDispatchesOnce(t *testing.T) {
	sink := newSinkServer(t, http.StatusOK, "")
	log := NewMemoryDeliveryLog()
	dispatcher := newTestDispatcher(sink.URL, log)
	queue := NewMemoryQueue(4)
	hook := &countingHook{}
	worker := &DeliveryWorker{Queue: queue, Dispatcher: dispatcher, Hook: hook}

	published := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	QueueSink{Enqueuer: queue, SiteURL: "https://crm.example.com", Now: func() time.Time { return published }}.
		Publish(context.Background(), core.ContactCreatedPayload{Contact: core.ContactSnapshot{ContactID: 9, Email: "q@x.com"}})
	if queue.Len() != 1 {
		t.Fatalf("expected queued job, got %d", queue.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := worker.ProcessOne(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	requests := sink.received()
	if len(requests) != 1 {
		t.Fatalf("expected one delivery, got %d", len(requests))
	}
	if requests[0].headers.Get(HeaderTimestamp) != "1772357400" {
		t.Fatalf("expected publish time to travel with the job, got %q", requests[0].headers.Get(HeaderTimestamp))
	}
	if hook.started != 1 || hook.succeeded != 1 || hook.failed != 0 {
		t.Fatalf("unexpected hook counts %+v", hook)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected queue drained")
	}
	if len(queue.Failed()) != 0 || len(queue.DeadLetters()) != 0 {
		t.Fatalf("expected delivered job to be acked")
	}
}

func TestDeliveryWorker_DeadLettersUndecodableJobs(t *testing.T) {
	queue := NewMemoryQueue(2)
	hook := &countingHook{}
	worker := &DeliveryWorker{Queue: queue, Dispatcher: newTestDispatcher("", NewMemoryDeliveryLog()), Hook: hook}

	if err := queue.Enqueue(context.Background(), &core.JobExecutionMessage{
		JobID:      JobIDDispatch,
		Parameters: map[string]any{"event_type": "unknown.kind"},
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := worker.ProcessOne(context.Background()); err == nil {
		t.Fatalf("expected decode failure")
	}
	if len(queue.DeadLetters()) != 1 || hook.failed != 1 {
		t.Fatalf("expected job dead lettered, got %d", len(queue.DeadLetters()))
	}
}

func TestDeliveryWorker_NacksFailedDispatchWithoutRequeue(t *testing.T) {
	sink := newSinkServer(t, http.StatusBadGateway, "")
	log := NewMemoryDeliveryLog()
	queue := NewMemoryQueue(2)
	hook := &countingHook{}
	worker := &DeliveryWorker{Queue: queue, Dispatcher: newTestDispatcher(sink.URL, log), Hook: hook}

	QueueSink{Enqueuer: queue, SiteURL: "https://crm.example.com"}.
		Publish(context.Background(), core.TagAppliedPayload{ContactID: 3, TagName: "vip"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := worker.ProcessOne(ctx); err == nil {
		t.Fatalf("expected dispatch failure to surface")
	}
	if len(queue.Failed()) != 1 || len(queue.DeadLetters()) != 0 {
		t.Fatalf("expected one failed nack, got failed=%d dead=%d", len(queue.Failed()), len(queue.DeadLetters()))
	}
	if queue.Len() != 0 {
		t.Fatalf("expected failed job not to be requeued")
	}
	if len(sink.received()) != 1 || hook.failed != 1 || hook.succeeded != 0 {
		t.Fatalf("expected exactly one attempt, got %d requests and hooks %+v", len(sink.received()), hook)
	}
	stats, _ := log.Stats(context.Background())
	if stats.Total != 1 || stats.ErrorCount != 1 {
		t.Fatalf("expected failed attempt recorded, got %+v", stats)
	}
}

func TestMemoryQueue_RejectsWhenFull(t *testing.T) {
	queue := NewMemoryQueue(1)
	msg := &core.JobExecutionMessage{JobID: JobIDDispatch}
	if err := queue.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := queue.Enqueue(context.Background(), msg); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEncodeDecodeJob_RoundTripsEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	event := core.NewWebhookEvent(core.TagRemovedPayload{ContactID: 4, TagName: "vip"}, "https://crm.example.com", at)
	msg, err := EncodeJob(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}
	decoded, err := DecodeJob(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload, ok := decoded.Payload.(core.TagRemovedPayload)
	if !ok || payload.TagName != "vip" || !decoded.Timestamp.Equal(at) || decoded.SiteIdentity != "https://crm.example.com" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}
