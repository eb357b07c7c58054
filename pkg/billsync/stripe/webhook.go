package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/billsync/billsync/pkg/billsync"
	"github.com/billsync/billsync/pkg/billsync/internal"
)

// handleWebhook processes incoming Stripe webhook events
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	select {
	case <-r.Context().Done():
		http.Error(w, "request timeout", http.StatusRequestTimeout)
		return
	default:
	}

	// Read and validate body (with size limit protection)
	body, err := internal.ReadBodyStrict(w, r, maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	// Extract signature from header
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}

	if err := p.HandleEvent(r.Context(), body, sig); err != nil {
		if errors.Is(err, billsync.ErrInvalidSignature) {
			// Permanent: Stripe will not resend with a corrected signature.
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		// Transient: withholding the ack makes Stripe redeliver.
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// HandleEvent verifies and applies one webhook delivery. It returns
// ErrInvalidSignature (wrapped) when verification fails - before any store
// access - and a transient error when a handler's store writes fail.
// Unrecognized event types are logged and acknowledged with a nil return.
func (p *Provider) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	startTime := time.Now()

	event, err := stripe.ConstructEvent(payload, sigHeader, string(p.webhookSecret))
	if err != nil {
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return fmt.Errorf("%w: %v", billsync.ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	// Dedup is best-effort: an unavailable dedup store never blocks
	// processing, it only loses redelivery suppression.
	if p.dedup != nil && event.ID != "" {
		seen, derr := p.dedup.Seen(ctx, event.ID)
		if derr != nil {
			p.logger.Warn("dedup store unavailable, reprocessing",
				billsync.Field{Key: "event_id", Value: event.ID},
				billsync.Field{Key: "error", Value: derr.Error()})
		} else if seen {
			p.logger.Info("duplicate event acknowledged",
				billsync.Field{Key: "event_id", Value: event.ID},
				billsync.Field{Key: "event_type", Value: eventType})
			p.metrics.RecordDuplicateEvent(providerName, eventType)
			return nil
		}
	}

	handled, err := p.processEvent(ctx, &event)
	if err != nil {
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		return err
	}

	if p.dedup != nil && event.ID != "" && handled {
		if derr := p.dedup.MarkProcessed(ctx, event.ID, p.dedupTTL); derr != nil {
			p.logger.Warn("failed to record processed event",
				billsync.Field{Key: "event_id", Value: event.ID},
				billsync.Field{Key: "error", Value: derr.Error()})
		}
	}

	status := "success"
	if !handled {
		status = "ignored"
	}
	p.metrics.RecordWebhookEvent(providerName, eventType, status)
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
	return nil
}

// processEvent dispatches a verified event to its transition handler. The
// returned bool reports whether the event type is recognized.
func (p *Provider) processEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	eventTimestamp := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		return true, p.handleCheckoutSessionCompleted(ctx, event, eventTimestamp)
	case "invoice.payment_succeeded":
		return true, p.handleInvoicePaymentSucceeded(ctx, event, eventTimestamp)
	case "invoice.payment_failed":
		return true, p.handleInvoicePaymentFailed(ctx, event, eventTimestamp)
	case "customer.subscription.updated":
		return true, p.handleSubscriptionUpdated(ctx, event, eventTimestamp)
	case "customer.subscription.deleted":
		return true, p.handleSubscriptionDeleted(ctx, event, eventTimestamp)
	default:
		p.logger.Info("unrecognized event type acknowledged",
			billsync.Field{Key: "event_type", Value: string(event.Type)})
		return false, nil
	}
}

// handleCheckoutSessionCompleted activates the subscription after a completed
// checkout and appends the succeeded payment to the ledger.
func (p *Provider) handleCheckoutSessionCompleted(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		p.skipMalformed(event, err)
		return nil
	}

	if session.paymentType() != billsync.PaymentTypeSubscription {
		p.logger.Debug("checkout session is not a subscription purchase",
			billsync.Field{Key: "session_id", Value: session.ID})
		return nil
	}

	planID := session.planID()
	if planID == "" {
		// Required field missing on the wire: skip the mutation rather than
		// activate a subscription with no plan.
		p.logger.Warn("checkout session missing metadata.planId, skipping",
			billsync.Field{Key: "session_id", Value: session.ID})
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return nil
	}

	sub, err := p.store.EnsureSubscription(ctx, p.accountKey)
	if err != nil {
		return fmt.Errorf("failed to fetch-or-create subscription: %w", err)
	}

	prev := sub.Status
	sub.Status = billsync.StatusActive
	sub.PlanID = planID
	sub.StripeSubscriptionID = session.Subscription.ID
	if session.Customer.ID != "" {
		sub.StripeCustomerID = session.Customer.ID
	}
	sub.UpdatedAt = eventTimestamp

	payment := &billsync.Payment{
		AccountKey:      p.accountKey,
		Amount:          minorToAmount(session.AmountTotal),
		Currency:        session.Currency,
		Type:            billsync.PaymentTypeSubscription,
		Status:          billsync.PaymentSucceeded,
		StripePaymentID: session.PaymentIntent.ID,
	}

	return p.apply(ctx, event, prev, sub, payment)
}

// handleInvoicePaymentSucceeded marks the subscription active, rolls the
// billing cycle forward, and appends the succeeded payment.
func (p *Provider) handleInvoicePaymentSucceeded(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		p.skipMalformed(event, err)
		return nil
	}

	sub, err := p.store.EnsureSubscription(ctx, p.accountKey)
	if err != nil {
		return fmt.Errorf("failed to fetch-or-create subscription: %w", err)
	}

	prev := sub.Status
	sub.Status = billsync.StatusActive
	if start := invoice.periodStart(); start != nil {
		sub.CurrentPeriodStart = start
	}
	if end := invoice.periodEnd(); end != nil {
		sub.CurrentPeriodEnd = end
		sub.NextBillingDate = end
	}
	if invoice.Customer.ID != "" {
		sub.StripeCustomerID = invoice.Customer.ID
	}
	sub.UpdatedAt = eventTimestamp

	payment := &billsync.Payment{
		AccountKey:      p.accountKey,
		Amount:          minorToAmount(invoice.AmountPaid),
		Currency:        invoice.Currency,
		Type:            billsync.PaymentTypeSubscription,
		Status:          billsync.PaymentSucceeded,
		StripePaymentID: invoice.ID,
	}

	return p.apply(ctx, event, prev, sub, payment)
}

// handleInvoicePaymentFailed marks the subscription past_due and records the
// failed collection attempt in the ledger.
func (p *Provider) handleInvoicePaymentFailed(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		p.skipMalformed(event, err)
		return nil
	}

	sub, err := p.store.EnsureSubscription(ctx, p.accountKey)
	if err != nil {
		return fmt.Errorf("failed to fetch-or-create subscription: %w", err)
	}

	prev := sub.Status
	sub.Status = billsync.StatusPastDue
	// next_payment_attempt is nullable: Stripe stops retrying eventually.
	sub.NextBillingDate = unixTime(invoice.NextPaymentAttempt)
	sub.UpdatedAt = eventTimestamp

	payment := &billsync.Payment{
		AccountKey:      p.accountKey,
		Amount:          minorToAmount(invoice.AmountDue),
		Currency:        invoice.Currency,
		Type:            billsync.PaymentTypeSubscription,
		Status:          billsync.PaymentFailed,
		StripePaymentID: invoice.ID,
	}

	return p.apply(ctx, event, prev, sub, payment)
}

// handleSubscriptionUpdated mirrors the provider's subscription resource into
// the local record: status mapping, billing cycle bounds, and any pending
// cancellation. It writes no ledger row.
func (p *Provider) handleSubscriptionUpdated(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	var remote subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &remote); err != nil {
		p.skipMalformed(event, err)
		return nil
	}

	sub, err := p.store.EnsureSubscription(ctx, p.accountKey)
	if err != nil {
		return fmt.Errorf("failed to fetch-or-create subscription: %w", err)
	}

	prev := sub.Status
	sub.Status = billsync.StatusFromProvider(remote.Status)
	sub.StripeSubscriptionID = remote.ID
	if remote.Customer.ID != "" {
		sub.StripeCustomerID = remote.Customer.ID
	}
	if start, end := remote.periodBounds(); end != nil {
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = end
		sub.NextBillingDate = end
	}
	sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	sub.CancelAt = unixTime(remote.CancelAt)
	sub.UpdatedAt = eventTimestamp

	return p.apply(ctx, event, prev, sub, nil)
}

// handleSubscriptionDeleted expires the subscription and clears the provider
// linkage. The row itself is never deleted; expired is terminal until a new
// checkout reactivates it.
func (p *Provider) handleSubscriptionDeleted(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	sub, err := p.store.EnsureSubscription(ctx, p.accountKey)
	if err != nil {
		return fmt.Errorf("failed to fetch-or-create subscription: %w", err)
	}

	prev := sub.Status
	sub.Status = billsync.StatusExpired
	sub.StripeSubscriptionID = ""
	sub.CancelAtPeriodEnd = false
	sub.CancelAt = nil
	sub.UpdatedAt = eventTimestamp

	return p.apply(ctx, event, prev, sub, nil)
}

// apply persists the mutated subscription (and optional ledger entry) in one
// store call, then records metrics and runs the post-processing callback.
func (p *Provider) apply(
	ctx context.Context, event *stripe.Event,
	prev billsync.Status, sub *billsync.Subscription, payment *billsync.Payment,
) error {
	if err := p.store.UpdateSubscription(ctx, sub, payment); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if prev != sub.Status {
		p.metrics.RecordStatusChange(providerName, string(prev), string(sub.Status))
		p.logger.Info("subscription status changed",
			billsync.Field{Key: "account_key", Value: sub.AccountKey},
			billsync.Field{Key: "from", Value: string(prev)},
			billsync.Field{Key: "to", Value: string(sub.Status)},
			billsync.Field{Key: "event_type", Value: string(event.Type)})
	}
	if payment != nil {
		p.metrics.RecordPayment(providerName, string(payment.Status))
	}

	if p.callback != nil {
		evt := billsync.WebhookEvent{
			AccountKey:     sub.AccountKey,
			EventID:        event.ID,
			EventType:      string(event.Type),
			EventTimestamp: time.Unix(event.Created, 0).UTC(),
			PreviousStatus: prev,
			NewStatus:      sub.Status,
		}
		if err := p.callback(ctx, evt); err != nil {
			return fmt.Errorf("webhook callback: %w", err)
		}
	}

	return nil
}

// skipMalformed logs a payload that failed to decode. Malformed payloads are
// acknowledged: redelivery would carry the same bytes, so withholding the ack
// only produces retry noise.
func (p *Provider) skipMalformed(event *stripe.Event, err error) {
	p.logger.Warn("malformed event payload, skipping",
		billsync.Field{Key: "event_id", Value: event.ID},
		billsync.Field{Key: "event_type", Value: string(event.Type)},
		billsync.Field{Key: "error", Value: err.Error()})
	p.metrics.RecordWebhookError(providerName, "invalid_payload")
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
