// Package redis provides a Redis implementation of the billsync.DedupStore
// interface. Processed event IDs are stored as plain keys with a TTL matching
// the provider's redelivery horizon, so the set is self-pruning.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements billsync.DedupStore using Redis
type Store struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis dedup store configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "billsync:event:")
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "billsync:event:",
	}
}

// New creates a new Redis dedup store.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "billsync:event:"
	}
	return &Store{client: client, config: config}, nil
}

// Seen implements billsync.DedupStore
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event id: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements billsync.DedupStore
func (s *Store) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}
	if err := s.client.Set(ctx, s.key(eventID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to record event id: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(eventID string) string {
	return s.config.KeyPrefix + eventID
}
