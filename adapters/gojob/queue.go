package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-job/queue"
)

// NackPolicy bounds what a nack may ask of the backend. Webhook deliveries are
// fire-once, so the zero value never requeues: a nack either dead letters or
// drops the job.
type NackPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// FireOnce dead letters anything that is nacked.
func FireOnce() NackPolicy {
	return NackPolicy{MaxAttempts: 1, DeadLetterOnMax: true}
}

func (p NackPolicy) Normalize(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if out.Requeue && (p.MaxAttempts <= 0 || attempt >= p.MaxAttempts) {
		out.Requeue = false
		out.DeadLetter = p.DeadLetterOnMax
	}
	if !out.Requeue && !out.DeadLetter && p.DeadLetterOnMax {
		out.DeadLetter = true
	}
	if !out.Requeue {
		out.Delay = 0
	}
	return out
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
	Logger   core.Logger
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

// Enqueue satisfies core.JobEnqueuer and logs the backend dispatch id.
func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	receipt, err := a.EnqueueWithReceipt(ctx, msg)
	if err != nil {
		return err
	}
	if a.Logger != nil {
		core.LogWithLevel(ctx, a.Logger, "debug", "webhook job enqueued", map[string]any{
			"dispatch_id":     receipt.DispatchID,
			"enqueued_at":     receipt.EnqueuedAt,
			"idempotency_key": msg.IdempotencyKey,
		})
	}
	return nil
}

func (a *EnqueuerAdapter) EnqueueWithReceipt(ctx context.Context, msg *core.JobExecutionMessage) (queue.EnqueueReceipt, error) {
	if a == nil || a.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: execution message is required")
	}
	receipt, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
	if err != nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueue %s: %w", msg.JobID, err)
	}
	return receipt, nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   NackPolicy
	attempt  int
}

func NewDeliveryAdapter(delivery queue.Delivery, policy NackPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy, attempt: 1}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.NackForAttempt(ctx, opts, d.attempt)
}

// NackForAttempt applies the policy as if attempt deliveries had been made.
func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	if attempt <= 0 {
		attempt = 1
	}
	return d.delivery.Nack(ctx, ToNackOptions(d.policy.Normalize(opts, attempt)))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   NackPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy NackPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
)
