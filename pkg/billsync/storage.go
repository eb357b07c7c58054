package billsync

import (
	"context"
	"time"
)

// Store is the relational collaborator holding the subscription record and
// the payment ledger. Implementations must enforce a unique constraint on
// Subscription.AccountKey so EnsureSubscription is race-safe: two concurrent
// calls that both observe "no row" must still result in exactly one row.
type Store interface {
	// EnsureSubscription returns the subscription row for the account,
	// creating it with StatusPendingPayment if absent. Handlers call this
	// before any mutation so an update-by-id always has a target.
	EnsureSubscription(ctx context.Context, accountKey string) (*Subscription, error)

	// GetSubscription returns the subscription row for the account, or
	// ErrSubscriptionNotFound.
	GetSubscription(ctx context.Context, accountKey string) (*Subscription, error)

	// UpdateSubscription persists the subscription by its row ID and, when
	// payment is non-nil, appends the ledger entry. Implementations backed by
	// a transactional store apply both writes atomically so a redelivered
	// event can never observe the subscription updated but the ledger short.
	UpdateSubscription(ctx context.Context, sub *Subscription, payment *Payment) error

	// RecordPayment appends a ledger entry on its own, outside any
	// subscription mutation.
	RecordPayment(ctx context.Context, payment *Payment) error

	// ListPayments returns the ledger for an account, newest first.
	ListPayments(ctx context.Context, accountKey string) ([]*Payment, error)
}

// DedupStore remembers processed event IDs so redelivered webhook events can
// be acknowledged without reprocessing. Optional: without one, handlers rely
// on last-writer-wins semantics, which is safe for subscription mutations but
// can double-append ledger entries on provider redelivery.
type DedupStore interface {
	// Seen reports whether the event ID has already been processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event ID for the given TTL. It is called
	// only after the event's writes have succeeded, so a failed delivery is
	// never remembered as processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}
