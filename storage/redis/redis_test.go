package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	return client
}

func TestNew(t *testing.T) {
	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Error("Expected error for nil client")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	store, err := New(client, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if store.config.KeyPrefix != "billsync:event:" {
		t.Errorf("Expected default key prefix, got %q", store.config.KeyPrefix)
	}

	store, err = New(client, Config{KeyPrefix: "custom:"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if store.config.KeyPrefix != "custom:" {
		t.Errorf("Expected custom key prefix, got %q", store.config.KeyPrefix)
	}
}

func TestStore_SeenMarkProcessed(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	seen, err := store.Seen(ctx, "evt_1")
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if seen {
		t.Error("Expected unseen event")
	}

	if err := store.MarkProcessed(ctx, "evt_1", time.Hour); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	seen, err = store.Seen(ctx, "evt_1")
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if !seen {
		t.Error("Expected event to be seen after MarkProcessed")
	}

	// TTL must be set so the key self-prunes
	ttl, err := client.TTL(ctx, "billsync:event:evt_1").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("Expected TTL within (0, 1h], got %v", ttl)
	}
}

func TestStore_MarkProcessed_EmptyID(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	store, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := store.MarkProcessed(context.Background(), "", time.Hour); err == nil {
		t.Error("Expected error for empty event id")
	}
}

func TestStore_Expiry(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if err := store.MarkProcessed(ctx, "evt_short", 50*time.Millisecond); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	seen, err := store.Seen(ctx, "evt_short")
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if seen {
		t.Error("Expected expired entry to read as unseen")
	}
}

func TestStore_Ping(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
