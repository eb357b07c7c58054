package api

import "time"

// SubscriptionResponse is the JSON shape of the current billing state.
type SubscriptionResponse struct {
	AccountKey           string     `json:"account_key"`
	Status               string     `json:"status"`
	PlanID               string     `json:"plan_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	NextBillingDate      *time.Time `json:"next_billing_date,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CancelAt             *time.Time `json:"cancel_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PaymentResponse is one payment ledger entry.
type PaymentResponse struct {
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency,omitempty"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	StripePaymentID string    `json:"stripe_payment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentsResponse is the payment history for an account, newest first.
type PaymentsResponse struct {
	AccountKey string            `json:"account_key"`
	Payments   []PaymentResponse `json:"payments"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
