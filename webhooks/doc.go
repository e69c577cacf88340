// Package webhooks delivers CRM lifecycle events to the single configured
// endpoint and keeps the delivery log.
//
// Delivery is fire-once: every attempt is recorded and failures are never
// retried. Dispatch runs inline through SyncSink, or through QueueSink and
// DeliveryWorker when the triggering request must not wait on the endpoint.
package webhooks
