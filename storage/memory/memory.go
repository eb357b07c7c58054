// Package memory provides an in-memory implementation of the billsync.Store
// and billsync.DedupStore interfaces. This implementation is primarily
// intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/billsync/billsync/pkg/billsync"
)

// Store implements billsync.Store and billsync.DedupStore using in-memory maps
type Store struct {
	mu            sync.RWMutex
	subscriptions map[string]*billsync.Subscription // account key -> row
	payments      map[string][]*billsync.Payment    // account key -> ledger
	processed     map[string]time.Time              // event id -> expiry
	nextID        int
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*billsync.Subscription),
		payments:      make(map[string][]*billsync.Payment),
		processed:     make(map[string]time.Time),
	}
}

// EnsureSubscription implements billsync.Store. The single lock section makes
// it race-safe: concurrent callers observing "no row" serialize here and only
// one insert happens.
func (s *Store) EnsureSubscription(ctx context.Context, accountKey string) (*billsync.Subscription, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("account key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscriptions[accountKey]; ok {
		subCopy := *sub
		return &subCopy, nil
	}

	s.nextID++
	sub := &billsync.Subscription{
		ID:         fmt.Sprintf("sub_%d", s.nextID),
		AccountKey: accountKey,
		Status:     billsync.StatusPendingPayment,
		UpdatedAt:  time.Now().UTC(),
	}
	s.subscriptions[accountKey] = sub

	subCopy := *sub
	return &subCopy, nil
}

// GetSubscription implements billsync.Store
func (s *Store) GetSubscription(ctx context.Context, accountKey string) (*billsync.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[accountKey]
	if !ok {
		return nil, billsync.ErrSubscriptionNotFound
	}

	// Return a copy to prevent external mutations
	subCopy := *sub
	return &subCopy, nil
}

// UpdateSubscription implements billsync.Store. Both writes happen under one
// lock section, mirroring the single transaction of the Postgres store.
func (s *Store) UpdateSubscription(ctx context.Context, sub *billsync.Subscription, payment *billsync.Payment) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("invalid subscription")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscriptions[sub.AccountKey]
	if !ok || existing.ID != sub.ID {
		return billsync.ErrSubscriptionNotFound
	}

	subCopy := *sub
	s.subscriptions[sub.AccountKey] = &subCopy

	if payment != nil {
		s.appendPayment(payment)
	}
	return nil
}

// RecordPayment implements billsync.Store
func (s *Store) RecordPayment(ctx context.Context, payment *billsync.Payment) error {
	if payment == nil || payment.AccountKey == "" {
		return fmt.Errorf("invalid payment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendPayment(payment)
	return nil
}

// appendPayment assigns the row identity and stores a copy. Caller must hold
// s.mu.
func (s *Store) appendPayment(payment *billsync.Payment) {
	s.nextID++
	p := *payment
	p.ID = fmt.Sprintf("pay_%d", s.nextID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.payments[p.AccountKey] = append(s.payments[p.AccountKey], &p)
}

// ListPayments implements billsync.Store, newest first
func (s *Store) ListPayments(ctx context.Context, accountKey string) ([]*billsync.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.payments[accountKey]
	out := make([]*billsync.Payment, 0, len(ledger))
	for i := len(ledger) - 1; i >= 0; i-- {
		p := *ledger[i]
		out = append(out, &p)
	}
	return out, nil
}

// Seen implements billsync.DedupStore
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.processed[eventID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

// MarkProcessed implements billsync.DedupStore
func (s *Store) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[eventID] = time.Now().Add(ttl)

	// Opportunistically drop expired entries to keep the map bounded.
	if len(s.processed) > 1024 {
		now := time.Now()
		for id, exp := range s.processed {
			if now.After(exp) {
				delete(s.processed, id)
			}
		}
	}
	return nil
}
