package stripe

import (
	"bytes"
	"encoding/json"
	"time"
)

// The event payloads are decoded into local wire structs rather than the SDK
// resource types. The provider's nested objects are a versioned wire contract:
// fields move between API versions (subscription period bounds moved onto
// subscription items), and expandable references arrive either as a bare ID
// string or as a full object. Decoding only the fields the reconciler reads
// keeps the handlers insulated from that churn.

// idRef is an expandable provider reference: either "sub_123" or
// {"id": "sub_123", ...}.
type idRef struct {
	ID string
}

func (r *idRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		r.ID = ""
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

// linePeriod bounds one invoice line's billing period.
type linePeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Subscription  idRef             `json:"subscription"`
	Customer      idRef             `json:"customer"`
	PaymentIntent idRef             `json:"payment_intent"`
}

// paymentType returns the metadata.paymentType tag, empty when absent.
func (s *checkoutSessionPayload) paymentType() string {
	return s.Metadata["paymentType"]
}

// planID returns the metadata.planId tag, empty when absent.
func (s *checkoutSessionPayload) planID() string {
	return s.Metadata["planId"]
}

type invoicePayload struct {
	ID                 string `json:"id"`
	AmountPaid         int64  `json:"amount_paid"`
	AmountDue          int64  `json:"amount_due"`
	Currency           string `json:"currency"`
	Customer           idRef  `json:"customer"`
	NextPaymentAttempt int64  `json:"next_payment_attempt"`
	Lines              struct {
		Data []struct {
			Period *linePeriod `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// periodEnd returns the first invoice line's period end, nil when the invoice
// carries no line period.
func (i *invoicePayload) periodEnd() *time.Time {
	for _, line := range i.Lines.Data {
		if line.Period != nil && line.Period.End > 0 {
			return unixTime(line.Period.End)
		}
	}
	return nil
}

// periodStart returns the first invoice line's period start, nil when absent.
func (i *invoicePayload) periodStart() *time.Time {
	for _, line := range i.Lines.Data {
		if line.Period != nil && line.Period.Start > 0 {
			return unixTime(line.Period.Start)
		}
	}
	return nil
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CancelAt          int64  `json:"cancel_at"`
	Customer          idRef  `json:"customer"`

	// Period bounds live on subscription items in current API versions and
	// on the subscription itself in older ones. Both are decoded; the item
	// values win.
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodBounds resolves the billing cycle bounds across API versions.
func (s *subscriptionPayload) periodBounds() (start, end *time.Time) {
	periodStart := s.CurrentPeriodStart
	periodEnd := s.CurrentPeriodEnd
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > periodEnd {
			periodStart = item.CurrentPeriodStart
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodStart > 0 {
		start = unixTime(periodStart)
	}
	if periodEnd > 0 {
		end = unixTime(periodEnd)
	}
	return start, end
}

// unixTime converts a provider Unix timestamp to *time.Time, nil for zero.
func unixTime(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}

// minorToAmount converts the provider's minor-unit integer to major currency
// units for the ledger.
func minorToAmount(minor int64) float64 {
	return float64(minor) / 100
}
