package billsync

// Config defines the standard configuration all reconciler providers accept.
type Config struct {
	// Store is the relational store holding the subscription record and the
	// payment ledger. Required.
	Store Store

	// Dedup is an optional processed-event-id store. When nil, redelivered
	// events are reprocessed and last-writer-wins semantics apply.
	Dedup DedupStore

	// AccountKey selects the subscription row events are applied to.
	// Defaults to DefaultAccountKey (single-tenant deployments).
	AccountKey string

	// Logger receives structured reconciler logs. Defaults to NoopLogger.
	Logger Logger

	// Metrics is an optional metrics collector. If nil, metrics are silently
	// ignored (no-op). Use metrics/prometheus.DefaultMetrics(namespace) for
	// Prometheus metrics.
	Metrics Metrics

	// WebhookCallback is invoked after each successfully applied event.
	WebhookCallback WebhookCallback
}
