package billsync

import "time"

// Metrics defines the interface for tracking reconciler operations.
// All methods are optional - implementations should be nil-safe at the
// call sites by substituting NoopMetrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from the provider.
	// status: "success", "error", or "ignored" (unrecognized event type)
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration records how long an event took to process.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: e.g. "auth_failed", "invalid_payload", "store_error"
	RecordWebhookError(provider, errorType string)

	// RecordStatusChange records a subscription lifecycle transition.
	RecordStatusChange(provider, fromStatus, toStatus string)

	// RecordPayment records a ledger append.
	// status: "succeeded" or "failed" (the payment outcome, not the write)
	RecordPayment(provider, status string)

	// RecordDuplicateEvent records a redelivered event skipped by the
	// dedup store.
	RecordDuplicateEvent(provider, eventType string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordStatusChange(_, _, _ string)                            {}
func (n *NoopMetrics) RecordPayment(_, _ string)                                    {}
func (n *NoopMetrics) RecordDuplicateEvent(_, _ string)                             {}
