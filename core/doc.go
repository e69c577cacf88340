// Package core holds the crmsync domain: contacts, tags, notes, activity,
// outbound event payloads, delivery log records, configuration and the
// store contracts the adapters implement. It must not depend on the HTTP
// gateway, the webhook dispatcher or any storage backend.
package core
