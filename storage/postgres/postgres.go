// Package postgres provides a PostgreSQL implementation of the billsync.Store
// interface using pgx. The fetch-or-create helper relies on the unique
// constraint on subscriptions.account_key (INSERT .. ON CONFLICT DO NOTHING),
// so two concurrent deliveries that both observe "no row" still produce
// exactly one row. Subscription update and ledger append for one event run in
// a single transaction.
//
// Expected schema:
//
//	CREATE TABLE subscriptions (
//	    id                     BIGSERIAL PRIMARY KEY,
//	    account_key            TEXT NOT NULL UNIQUE,
//	    status                 TEXT NOT NULL,
//	    plan_id                TEXT NOT NULL DEFAULT '',
//	    stripe_customer_id     TEXT,
//	    stripe_subscription_id TEXT,
//	    current_period_start   TIMESTAMPTZ,
//	    current_period_end     TIMESTAMPTZ,
//	    next_billing_date      TIMESTAMPTZ,
//	    cancel_at_period_end   BOOLEAN NOT NULL DEFAULT FALSE,
//	    cancel_at              TIMESTAMPTZ,
//	    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE payments (
//	    id                BIGSERIAL PRIMARY KEY,
//	    account_key       TEXT NOT NULL,
//	    amount            NUMERIC(12,2) NOT NULL,
//	    currency          TEXT NOT NULL DEFAULT '',
//	    type              TEXT NOT NULL,
//	    status            TEXT NOT NULL,
//	    stripe_payment_id TEXT,
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
// The ledger table has no UPDATE or DELETE path in this package.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billsync/billsync/pkg/billsync"
)

// Store implements billsync.Store using PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the PostgreSQL connection
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const subscriptionColumns = `id, account_key, status, plan_id,
	stripe_customer_id, stripe_subscription_id,
	current_period_start, current_period_end, next_billing_date,
	cancel_at_period_end, cancel_at, updated_at`

// EnsureSubscription implements billsync.Store. The insert is a no-op when
// the row exists; the unique constraint on account_key serializes concurrent
// creators.
func (s *Store) EnsureSubscription(ctx context.Context, accountKey string) (*billsync.Subscription, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("account key is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (account_key, status, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (account_key) DO NOTHING`,
		accountKey, string(billsync.StatusPendingPayment))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure subscription exists: %w", err)
	}

	return s.GetSubscription(ctx, accountKey)
}

// GetSubscription implements billsync.Store
func (s *Store) GetSubscription(ctx context.Context, accountKey string) (*billsync.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_key = $1`,
		accountKey)
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*billsync.Subscription, error) {
	var sub billsync.Subscription
	var id int64
	var status string
	var customerID, subscriptionID *string

	err := row.Scan(
		&id,
		&sub.AccountKey,
		&status,
		&sub.PlanID,
		&customerID,
		&subscriptionID,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.NextBillingDate,
		&sub.CancelAtPeriodEnd,
		&sub.CancelAt,
		&sub.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, billsync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.ID = strconv.FormatInt(id, 10)
	sub.Status = billsync.Status(status)
	if customerID != nil {
		sub.StripeCustomerID = *customerID
	}
	if subscriptionID != nil {
		sub.StripeSubscriptionID = *subscriptionID
	}
	return &sub, nil
}

// UpdateSubscription implements billsync.Store. The subscription update and
// the optional ledger append commit atomically, so a redelivered event can
// never observe the subscription mutated but the ledger short.
func (s *Store) UpdateSubscription(ctx context.Context, sub *billsync.Subscription, payment *billsync.Payment) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("invalid subscription")
	}
	id, err := strconv.ParseInt(sub.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid subscription id %q: %w", sub.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE subscriptions SET
				status = $1,
				plan_id = $2,
				stripe_customer_id = NULLIF($3, ''),
				stripe_subscription_id = NULLIF($4, ''),
				current_period_start = $5,
				current_period_end = $6,
				next_billing_date = $7,
				cancel_at_period_end = $8,
				cancel_at = $9,
				updated_at = $10
			WHERE id = $11`,
		string(sub.Status), sub.PlanID,
		sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.NextBillingDate,
		sub.CancelAtPeriodEnd, sub.CancelAt, sub.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billsync.ErrSubscriptionNotFound
	}

	if payment != nil {
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RecordPayment implements billsync.Store
func (s *Store) RecordPayment(ctx context.Context, payment *billsync.Payment) error {
	if payment == nil || payment.AccountKey == "" {
		return fmt.Errorf("invalid payment")
	}
	return insertPayment(ctx, s.pool, payment)
}

// execer abstracts over the pool and a transaction so the ledger insert can
// run standalone or inside an event's transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertPayment(ctx context.Context, db execer, payment *billsync.Payment) error {
	createdAt := payment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx,
		`INSERT INTO payments (account_key, amount, currency, type, status, stripe_payment_id, created_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		payment.AccountKey, payment.Amount, payment.Currency,
		payment.Type, string(payment.Status), payment.StripePaymentID, createdAt)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// ListPayments implements billsync.Store, newest first
func (s *Store) ListPayments(ctx context.Context, accountKey string) ([]*billsync.Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_key, amount, currency, type, status, stripe_payment_id, created_at
			FROM payments WHERE account_key = $1
			ORDER BY created_at DESC, id DESC`,
		accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []*billsync.Payment
	for rows.Next() {
		var p billsync.Payment
		var id int64
		var status string
		var paymentID *string
		if err := rows.Scan(&id, &p.AccountKey, &p.Amount, &p.Currency,
			&p.Type, &status, &paymentID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.ID = strconv.FormatInt(id, 10)
		p.Status = billsync.PaymentStatus(status)
		if paymentID != nil {
			p.StripePaymentID = *paymentID
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return out, nil
}
