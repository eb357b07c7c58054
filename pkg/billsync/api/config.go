package api

import (
	"net/http"

	"github.com/billsync/billsync/pkg/billsync"
)

// Config configures the read-side HTTP handler.
type Config struct {
	// Store is the subscription/ledger store. Required.
	Store billsync.Store

	// GetAccountKey extracts the account key from the request (e.g. from an
	// authenticated session). When nil, billsync.DefaultAccountKey is used,
	// matching single-tenant deployments.
	GetAccountKey func(r *http.Request) string

	// MaxPayments caps the payment history response size. Defaults to 50.
	MaxPayments int
}
