package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryOAuthStateStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, OAuthStateRecord{State: "state_a", TenantID: "demo.myshopify.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	pending, err := store.Pending(ctx, "demo.myshopify.com")
	if err != nil || !pending {
		t.Fatalf("expected pending state, got %v (err=%v)", pending, err)
	}

	record, err := store.Consume(ctx, "state_a")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.TenantID != "demo.myshopify.com" {
		t.Fatalf("expected tenant on consumed record, got %q", record.TenantID)
	}
	if record.ExpiresAt.IsZero() {
		t.Fatalf("expected expiry to be filled")
	}
	if _, err := store.Consume(ctx, "state_a"); err == nil {
		t.Fatalf("expected second consume to fail")
	}
	pending, _ = store.Pending(ctx, "demo.myshopify.com")
	if pending {
		t.Fatalf("expected no pending state after consume")
	}
}

func TestMemoryOAuthStateStore_RejectsExpired(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	now := time.Now().UTC()
	if err := store.Save(context.Background(), OAuthStateRecord{
		State:     "stale_state",
		CreatedAt: now.Add(-2 * time.Minute),
		ExpiresAt: now.Add(-1 * time.Minute),
	}); err != nil {
		t.Fatalf("save stale state: %v", err)
	}
	if _, err := store.Consume(context.Background(), "stale_state"); err == nil {
		t.Fatalf("expected expired state to be rejected")
	}
}

func TestMemoryOAuthStateStore_RequiresState(t *testing.T) {
	store := NewMemoryOAuthStateStore(0)
	if err := store.Save(context.Background(), OAuthStateRecord{}); err == nil {
		t.Fatalf("expected empty state to be rejected")
	}
	if _, err := store.Consume(context.Background(), " "); err == nil {
		t.Fatalf("expected empty state to be rejected")
	}
}

func TestGenerateOAuthState_Unique(t *testing.T) {
	first, err := GenerateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("expected distinct non-empty states, got %q and %q", first, second)
	}
}
