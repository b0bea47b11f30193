package webhooks

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLedger_LeaseBlocksConcurrentClaim(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger(time.Hour)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, claimed, err := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute); err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	if _, claimed, _ := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute); claimed {
		t.Fatalf("expected active lease to block claim")
	}

	now = now.Add(2 * time.Minute)
	record, claimed, err := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected expired lease to be reclaimed: claimed=%v err=%v", claimed, err)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", record.Attempts)
	}
}

func TestMemoryLedger_ProcessedExpiresAfterRetention(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger(time.Hour)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, _, err := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Complete(ctx, "wh-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, claimed, _ := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute); claimed {
		t.Fatalf("expected processed delivery to stay claimed")
	}

	now = now.Add(2 * time.Hour)
	if _, claimed, _ := ledger.Claim(ctx, "wh-1", TopicAppUninstalled, time.Minute); !claimed {
		t.Fatalf("expected record to be pruned after retention")
	}
}

func TestMemoryLedger_CompleteUnknown(t *testing.T) {
	if err := NewMemoryLedger(0).Complete(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unclaimed delivery")
	}
}
