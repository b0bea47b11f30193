package install

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisStateStore_RequiresClient(t *testing.T) {
	if _, err := NewRedisStateStore(nil, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisStateStore_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	store, err := NewRedisStateStore(client, 0)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.ttl != core.DefaultOAuthStateTTL {
		t.Fatalf("expected default ttl, got %s", store.ttl)
	}
	if got := store.stateKey("abc"); got != "go-shopify-provisioner:oauth-state:state:abc" {
		t.Fatalf("unexpected state key %q", got)
	}
	if got := store.pendingKey("demo.myshopify.com"); got != "go-shopify-provisioner:oauth-state:pending:demo.myshopify.com" {
		t.Fatalf("unexpected pending key %q", got)
	}
}

func TestRedisStateStore_SaveConsumeRoundTrip(t *testing.T) {
	addr := os.Getenv("PROVISIONER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PROVISIONER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store, err := NewRedisStateStore(client, time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store.prefix = "provisioner-test:" + time.Now().Format("150405.000000")

	record := core.OAuthStateRecord{State: "state-1", TenantID: "demo.myshopify.com"}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	pending, err := store.Pending(ctx, "demo.myshopify.com")
	if err != nil || !pending {
		t.Fatalf("expected pending, got %t err=%v", pending, err)
	}

	got, err := store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.TenantID != "demo.myshopify.com" || got.ExpiresAt.IsZero() {
		t.Fatalf("unexpected record %#v", got)
	}
	if _, err := store.Consume(ctx, "state-1"); err == nil {
		t.Fatalf("expected second consume to fail")
	}
	pending, _ = store.Pending(ctx, "demo.myshopify.com")
	if pending {
		t.Fatalf("expected pending cleared after consume")
	}
}

func TestRedisStateStore_ConsumingOlderStateKeepsNewerPending(t *testing.T) {
	addr := os.Getenv("PROVISIONER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PROVISIONER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store, err := NewRedisStateStore(client, time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store.prefix = "provisioner-test:" + time.Now().Format("150405.000000")

	for _, state := range []string{"state-old", "state-new"} {
		if err := store.Save(ctx, core.OAuthStateRecord{State: state, TenantID: "demo.myshopify.com"}); err != nil {
			t.Fatalf("save %s: %v", state, err)
		}
	}
	if _, err := store.Consume(ctx, "state-old"); err != nil {
		t.Fatalf("consume old: %v", err)
	}
	pending, err := store.Pending(ctx, "demo.myshopify.com")
	if err != nil || !pending {
		t.Fatalf("expected newer state to stay pending, got %t err=%v", pending, err)
	}

	if _, err := store.Consume(ctx, "state-new"); err != nil {
		t.Fatalf("consume new: %v", err)
	}
	pending, _ = store.Pending(ctx, "demo.myshopify.com")
	if pending {
		t.Fatalf("expected pending cleared after consuming the latest state")
	}
}
