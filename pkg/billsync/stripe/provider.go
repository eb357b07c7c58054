package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/billsync/billsync/pkg/billsync"
	"github.com/billsync/billsync/pkg/billsync/internal"
)

const (
	providerName             = "stripe"
	maxBodyBytes             = 256 * 1024
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100

	// Stripe redelivers failed webhook events for up to three days, so a
	// dedup entry older than that can never collide with a retry.
	defaultDedupTTL = 72 * time.Hour
)

// Config extends billsync.Config with Stripe-specific options
type Config struct {
	billsync.Config // Base config (Store, Dedup, Logger, Metrics, ...)

	// WebhookSecret is the endpoint secret shared with Stripe, used to
	// verify the Stripe-Signature header. Required.
	WebhookSecret string

	// DedupTTL is how long processed event IDs are remembered when a dedup
	// store is configured. Defaults to 72h, Stripe's redelivery horizon.
	DedupTTL time.Duration
}

// Provider reconciles Stripe subscription lifecycle events into the local
// subscription record and payment ledger.
type Provider struct {
	store         billsync.Store
	dedup         billsync.DedupStore
	accountKey    string
	webhookSecret []byte
	dedupTTL      time.Duration
	rateLimiter   *internal.RateLimiter
	logger        billsync.Logger
	metrics       billsync.Metrics
	callback      billsync.WebhookCallback
}

// NewProvider creates a new Stripe subscription reconciler. The store and
// webhook secret are injected here; there are no package-level client handles.
func NewProvider(config Config) (*Provider, error) {
	if config.Store == nil {
		return nil, billsync.ErrNotConfigured
	}

	secret := strings.TrimSpace(config.WebhookSecret)
	if secret == "" {
		return nil, billsync.ErrNotConfigured
	}

	accountKey := config.AccountKey
	if accountKey == "" {
		accountKey = billsync.DefaultAccountKey
	}

	dedupTTL := config.DedupTTL
	if dedupTTL <= 0 {
		dedupTTL = defaultDedupTTL
	}

	logger := config.Logger
	if logger == nil {
		logger = &billsync.NoopLogger{}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billsync.NoopMetrics{}
	}

	return &Provider{
		store:         config.Store,
		dedup:         config.Dedup,
		accountKey:    accountKey,
		webhookSecret: []byte(secret),
		dedupTTL:      dedupTTL,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		logger:        logger,
		metrics:       metrics,
		callback:      config.WebhookCallback,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	// Wrap with rate limiting
	return p.rateLimiter.Middleware(handler)
}
