package billsync

import (
	"context"
	"time"
)

// WebhookEvent describes a successfully processed webhook event. It is passed
// to the WebhookCallback after the subscription record has been persisted.
type WebhookEvent struct {
	// AccountKey identifies the affected account.
	AccountKey string

	// EventID is the provider's event identifier.
	EventID string

	// EventType is the provider-specific event type
	// (e.g. "invoice.payment_succeeded").
	EventType string

	// EventTimestamp is when the event occurred, per the provider.
	EventTimestamp time.Time

	// PreviousStatus is the lifecycle state before the event was applied.
	PreviousStatus Status

	// NewStatus is the lifecycle state after the event was applied.
	NewStatus Status
}

// WebhookCallback is invoked after an event has been applied to the store.
// A callback error is propagated to the webhook response (500) so the
// provider redelivers; the store write is not rolled back.
type WebhookCallback func(ctx context.Context, event WebhookEvent) error
