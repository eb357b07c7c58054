// Package billsync reconciles payment-provider subscription lifecycle events
// into a local subscription record and an append-only payment ledger.
//
// The core package defines the domain types and the storage contract. Provider
// implementations (e.g. billsync/stripe) translate signed webhook events into
// deterministic mutations of these records.
package billsync

import "time"

// Status is the local subscription lifecycle state.
type Status string

const (
	// StatusPendingPayment is the initial state of a subscription row created
	// before any payment has been observed.
	StatusPendingPayment Status = "pending_payment"

	// StatusActive means the current billing cycle is paid.
	StatusActive Status = "active"

	// StatusPastDue means the latest invoice payment failed; the provider
	// will retry collection.
	StatusPastDue Status = "past_due"

	// StatusExpired is terminal until a new checkout reactivates the
	// subscription. The row is never deleted.
	StatusExpired Status = "expired"
)

// StatusFromProvider maps a provider-side subscription status to the local
// lifecycle state. Unknown provider statuses (trialing, incomplete, ...) are
// treated as active: the provider is the source of truth and has not told us
// the subscription is dead.
func StatusFromProvider(providerStatus string) Status {
	switch providerStatus {
	case "past_due":
		return StatusPastDue
	case "canceled", "unpaid", "incomplete_expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

// DefaultAccountKey is the account key used by single-tenant deployments.
// Subscriptions are keyed so the schema generalizes to multi-tenant use, but
// a deployment that models exactly one customer only ever touches this key.
const DefaultAccountKey = "default"

// Subscription is the reconciled billing state for one account. At most one
// row exists per account key, enforced by a unique constraint in the store.
type Subscription struct {
	// ID is the store-assigned row identifier.
	ID string

	// AccountKey identifies the account this subscription belongs to.
	AccountKey string

	// Status is the local lifecycle state.
	Status Status

	// PlanID references the purchased plan (from checkout metadata).
	PlanID string

	// StripeCustomerID and StripeSubscriptionID correlate the row with the
	// provider's resources. Empty string means not linked.
	StripeCustomerID     string
	StripeSubscriptionID string

	// CurrentPeriodStart and CurrentPeriodEnd bound the active billing cycle.
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	// NextBillingDate is the provider's next collection attempt, when known.
	NextBillingDate *time.Time

	// CancelAtPeriodEnd marks a pending cancellation; CancelAt is its
	// scheduled time, nil if none.
	CancelAtPeriodEnd bool
	CancelAt          *time.Time

	// UpdatedAt is the last mutation time. Last writer wins: provider events
	// are not strictly ordered across deliveries.
	UpdatedAt time.Time
}

// PaymentStatus is the outcome recorded on a ledger entry.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentTypeSubscription is the only payment type currently produced.
const PaymentTypeSubscription = "subscription"

// Payment is an append-only audit ledger entry. Entries are immutable once
// written; no update or delete path exists.
type Payment struct {
	// ID is the store-assigned row identifier.
	ID string

	// AccountKey identifies the account the payment belongs to.
	AccountKey string

	// Amount is in major currency units, converted from the provider's
	// minor-unit integer (minor / 100).
	Amount float64

	// Currency is the ISO currency code reported by the provider.
	Currency string

	// Type is the payment category, currently always "subscription".
	Type string

	// Status is succeeded or failed.
	Status PaymentStatus

	// StripePaymentID correlates with the provider's payment or invoice
	// resource. Empty string means unknown.
	StripePaymentID string

	// CreatedAt is when the ledger entry was written.
	CreatedAt time.Time
}
