// Package gojob maps the crmsync job contracts onto go-job queues so webhook
// deliveries can run on any go-job backend instead of the in-process queue.
package gojob

import (
	"strings"

	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const JobIDWebhookDispatch = webhooks.JobIDDispatch

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     core.CopyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     core.CopyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions picks the go-job disposition: dead letter wins over retry,
// and a nack asking for neither marks the dispatch failed.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	out := queue.NackOptions{
		Disposition: queue.NackDispositionFailed,
		Reason:      opts.Reason,
	}
	switch {
	case opts.DeadLetter:
		out.Disposition = queue.NackDispositionDeadLetter
	case opts.Requeue:
		out.Disposition = queue.NackDispositionRetry
		out.Delay = opts.Delay
	}
	return out
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	out := core.JobNackOptions{Reason: opts.Reason}
	switch opts.Disposition {
	case queue.NackDispositionDeadLetter:
		out.DeadLetter = true
	case queue.NackDispositionRetry:
		out.Requeue = true
		out.Delay = opts.Delay
	}
	return out
}
