package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/billsync/billsync/pkg/billsync"
	"github.com/billsync/billsync/storage/memory"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testAccountKey    = "default"
	testCustomerID    = "cus_test_123"
	testSubID         = "sub_test_123"
	testPlanID        = "pro"
)

// newTestProvider creates a provider backed by a fresh in-memory store
func newTestProvider(t *testing.T) (*Provider, *memory.Store) {
	t.Helper()
	store := memory.New()
	provider, err := NewProvider(Config{
		Config: billsync.Config{
			Store: store,
		},
		WebhookSecret: testWebhookSecret,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider, store
}

// signPayload produces a Stripe-Signature header value for the payload using
// the v1 scheme: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// eventJSON builds a webhook event envelope with the given object payload
func eventJSON(t *testing.T, id, eventType string, object any) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("Failed to marshal event object: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": json.RawMessage(raw),
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal event envelope: %v", err)
	}
	return payload
}

func TestNewProvider_MissingStore(t *testing.T) {
	_, err := NewProvider(Config{
		WebhookSecret: testWebhookSecret,
	})
	if !errors.Is(err, billsync.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestNewProvider_MissingSecret(t *testing.T) {
	_, err := NewProvider(Config{
		Config: billsync.Config{Store: memory.New()},
	})
	if !errors.Is(err, billsync.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}

	_, err = NewProvider(Config{
		Config:        billsync.Config{Store: memory.New()},
		WebhookSecret: "   ",
	})
	if !errors.Is(err, billsync.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for blank secret, got %v", err)
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	provider, _ := newTestProvider(t)

	if provider.accountKey != billsync.DefaultAccountKey {
		t.Errorf("Expected account key %q, got %q", billsync.DefaultAccountKey, provider.accountKey)
	}
	if provider.dedupTTL != defaultDedupTTL {
		t.Errorf("Expected dedup TTL %v, got %v", defaultDedupTTL, provider.dedupTTL)
	}
	if provider.logger == nil {
		t.Error("Expected default logger, got nil")
	}
	if provider.metrics == nil {
		t.Error("Expected default metrics, got nil")
	}
}

func TestNewProvider_CustomAccountKey(t *testing.T) {
	provider, err := NewProvider(Config{
		Config: billsync.Config{
			Store:      memory.New(),
			AccountKey: "tenant-42",
		},
		WebhookSecret: testWebhookSecret,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if provider.accountKey != "tenant-42" {
		t.Errorf("Expected account key tenant-42, got %q", provider.accountKey)
	}
}

func TestProvider_Name(t *testing.T) {
	provider, _ := newTestProvider(t)
	if provider.Name() != providerName {
		t.Errorf("Expected name %s, got %s", providerName, provider.Name())
	}
}

func TestProvider_WebhookHandler(t *testing.T) {
	provider, _ := newTestProvider(t)
	if provider.WebhookHandler() == nil {
		t.Error("Expected webhook handler, got nil")
	}
}
