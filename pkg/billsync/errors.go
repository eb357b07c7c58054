package billsync

import "errors"

var (
	// ErrNotConfigured is returned when a reconciler is constructed without
	// its required collaborators (store, webhook secret).
	ErrNotConfigured = errors.New("billsync: reconciler not configured")

	// ErrInvalidSignature is returned when webhook signature verification
	// fails. Permanent: the provider will not resend with a corrected
	// signature, so the event is rejected without any store access.
	ErrInvalidSignature = errors.New("billsync: invalid webhook signature")

	// ErrInvalidPayload is returned when a webhook payload cannot be decoded.
	ErrInvalidPayload = errors.New("billsync: invalid webhook payload")

	// ErrSubscriptionNotFound is returned by Store.GetSubscription when no
	// row exists for the account key.
	ErrSubscriptionNotFound = errors.New("billsync: subscription not found")
)
