// Package api provides read-side HTTP endpoints over the subscription record
// and payment ledger, for application frontends that display billing state.
package api

import (
	"errors"
	"net/http"

	"github.com/billsync/billsync/pkg/billsync"
	"github.com/billsync/billsync/pkg/billsync/internal"
)

const defaultMaxPayments = 50

// Handler provides HTTP endpoints for subscription inspection
type Handler struct {
	config Config
}

// NewHandler creates a read-side handler over the given store
func NewHandler(config Config) (*Handler, error) {
	if config.Store == nil {
		return nil, billsync.ErrNotConfigured
	}
	if config.MaxPayments <= 0 {
		config.MaxPayments = defaultMaxPayments
	}
	return &Handler{config: config}, nil
}

// GetSubscription returns the current billing state for the account. An
// account with no subscription row reads as pending_payment with no plan,
// mirroring how the reconciler treats an absent row.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	accountKey := h.accountKey(r)

	sub, err := h.config.Store.GetSubscription(r.Context(), accountKey)
	if err != nil {
		if errors.Is(err, billsync.ErrSubscriptionNotFound) {
			_ = internal.WriteJSON(w, http.StatusOK, SubscriptionResponse{
				AccountKey: accountKey,
				Status:     string(billsync.StatusPendingPayment),
			})
			return
		}
		_ = internal.WriteJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "failed to load subscription"})
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, SubscriptionResponse{
		AccountKey:           sub.AccountKey,
		Status:               string(sub.Status),
		PlanID:               sub.PlanID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		NextBillingDate:      sub.NextBillingDate,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CancelAt:             sub.CancelAt,
		UpdatedAt:            sub.UpdatedAt,
	})
}

// GetPayments returns the account's payment history, newest first, capped at
// MaxPayments entries.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	accountKey := h.accountKey(r)

	ledger, err := h.config.Store.ListPayments(r.Context(), accountKey)
	if err != nil {
		_ = internal.WriteJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "failed to load payments"})
		return
	}

	if len(ledger) > h.config.MaxPayments {
		ledger = ledger[:h.config.MaxPayments]
	}

	resp := PaymentsResponse{
		AccountKey: accountKey,
		Payments:   make([]PaymentResponse, 0, len(ledger)),
	}
	for _, p := range ledger {
		resp.Payments = append(resp.Payments, PaymentResponse{
			Amount:          p.Amount,
			Currency:        p.Currency,
			Type:            p.Type,
			Status:          string(p.Status),
			StripePaymentID: p.StripePaymentID,
			CreatedAt:       p.CreatedAt,
		})
	}

	_ = internal.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) accountKey(r *http.Request) string {
	if h.config.GetAccountKey != nil {
		if key := h.config.GetAccountKey(r); key != "" {
			return key
		}
	}
	return billsync.DefaultAccountKey
}
