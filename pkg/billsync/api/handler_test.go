package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/billsync/billsync/pkg/billsync"
	"github.com/billsync/billsync/storage/memory"
)

func TestNewHandler_MissingStore(t *testing.T) {
	if _, err := NewHandler(Config{}); !errors.Is(err, billsync.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestGetSubscription_NoRow(t *testing.T) {
	handler, err := NewHandler(Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/billing/subscription", http.NoBody)
	w := httptest.NewRecorder()
	handler.GetSubscription(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp SubscriptionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != string(billsync.StatusPendingPayment) {
		t.Errorf("Expected pending_payment for missing row, got %s", resp.Status)
	}
	if resp.AccountKey != billsync.DefaultAccountKey {
		t.Errorf("Expected default account key, got %s", resp.AccountKey)
	}
}

func TestGetSubscription_ExistingRow(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	sub, err := store.EnsureSubscription(ctx, billsync.DefaultAccountKey)
	if err != nil {
		t.Fatalf("EnsureSubscription failed: %v", err)
	}
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	sub.Status = billsync.StatusActive
	sub.PlanID = "pro"
	sub.CurrentPeriodEnd = &periodEnd
	if err := store.UpdateSubscription(ctx, sub, nil); err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}

	handler, err := NewHandler(Config{Store: store})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/billing/subscription", http.NoBody)
	w := httptest.NewRecorder()
	handler.GetSubscription(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp SubscriptionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != string(billsync.StatusActive) {
		t.Errorf("Expected active, got %s", resp.Status)
	}
	if resp.PlanID != "pro" {
		t.Errorf("Expected plan pro, got %s", resp.PlanID)
	}
	if resp.CurrentPeriodEnd == nil || !resp.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("Expected period end %v, got %v", periodEnd, resp.CurrentPeriodEnd)
	}
}

func TestGetPayments(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for _, amount := range []float64{10, 20} {
		err := store.RecordPayment(ctx, &billsync.Payment{
			AccountKey: billsync.DefaultAccountKey,
			Amount:     amount,
			Currency:   "usd",
			Type:       billsync.PaymentTypeSubscription,
			Status:     billsync.PaymentSucceeded,
		})
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
	}

	handler, err := NewHandler(Config{Store: store})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/billing/payments", http.NoBody)
	w := httptest.NewRecorder()
	handler.GetPayments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp PaymentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Payments) != 2 {
		t.Fatalf("Expected 2 payments, got %d", len(resp.Payments))
	}
	if resp.Payments[0].Amount != 20 {
		t.Errorf("Expected newest first, got %v", resp.Payments[0].Amount)
	}
}

func TestGetPayments_Capped(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = store.RecordPayment(ctx, &billsync.Payment{
			AccountKey: billsync.DefaultAccountKey,
			Amount:     float64(i),
			Status:     billsync.PaymentSucceeded,
		})
	}

	handler, err := NewHandler(Config{Store: store, MaxPayments: 3})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/billing/payments", http.NoBody)
	w := httptest.NewRecorder()
	handler.GetPayments(w, req)

	var resp PaymentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Payments) != 3 {
		t.Errorf("Expected cap of 3 payments, got %d", len(resp.Payments))
	}
}

func TestAccountKeyResolver(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	sub, err := store.EnsureSubscription(ctx, "tenant-42")
	if err != nil {
		t.Fatalf("EnsureSubscription failed: %v", err)
	}
	sub.Status = billsync.StatusActive
	if err := store.UpdateSubscription(ctx, sub, nil); err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}

	handler, err := NewHandler(Config{
		Store: store,
		GetAccountKey: func(r *http.Request) string {
			return r.Header.Get("X-Account-Key")
		},
	})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/billing/subscription", http.NoBody)
	req.Header.Set("X-Account-Key", "tenant-42")
	w := httptest.NewRecorder()
	handler.GetSubscription(w, req)

	var resp SubscriptionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.AccountKey != "tenant-42" {
		t.Errorf("Expected tenant-42, got %s", resp.AccountKey)
	}
	if resp.Status != string(billsync.StatusActive) {
		t.Errorf("Expected active, got %s", resp.Status)
	}
}
