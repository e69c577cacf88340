package gojob

import (
	"context"

	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-job/queue/worker"
)

// WorkerHookAdapter lets a crmsync hook observe a go-job worker.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// LogHook reports webhook job outcomes through the service logger.
type LogHook struct {
	Logger core.Logger
}

func NewLogHook(logger core.Logger) LogHook {
	return LogHook{Logger: core.ResolveLogger("crmsync.jobs", nil, logger)}
}

func (h LogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	core.LogWithLevel(ctx, h.Logger, "debug", "job started", eventFields(event))
}

func (h LogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	core.LogWithLevel(ctx, h.Logger, "debug", "job succeeded", eventFields(event))
}

func (h LogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	core.LogWithLevel(ctx, h.Logger, "warn", "job failed", eventFields(event))
}

func (h LogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	core.LogWithLevel(ctx, h.Logger, "info", "job retry scheduled", eventFields(event))
}

func eventFields(event core.JobWorkerEvent) map[string]any {
	fields := map[string]any{
		"attempt":     event.Attempt,
		"duration_ms": event.Duration.Milliseconds(),
	}
	if event.Message != nil {
		fields["job_id"] = event.Message.JobID
		fields["idempotency_key"] = event.Message.IdempotencyKey
		if eventType, ok := event.Message.Parameters["event_type"].(string); ok {
			fields["event_type"] = eventType
		}
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	return fields
}

var (
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = LogHook{}
)
