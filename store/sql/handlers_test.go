package sqlstore

import (
	"testing"

	"github.com/google/uuid"
)

func TestKeyedHandlers_ResolveNaturalKeys(t *testing.T) {
	credentials := shopCredentialHandlers()
	if got := credentials.GetIdentifier(); got != "shop" {
		t.Fatalf("expected shop identifier, got %q", got)
	}
	if got := credentials.GetIdentifierValue(&shopCredentialRecord{Shop: " demo.myshopify.com "}); got != "demo.myshopify.com" {
		t.Fatalf("expected trimmed shop, got %q", got)
	}

	deliveries := webhookDeliveryHandlers()
	if got := deliveries.GetIdentifier(); got != "delivery_id" {
		t.Fatalf("expected delivery_id identifier, got %q", got)
	}
	if got := deliveries.GetIdentifierValue(&webhookDeliveryRecord{ID: "row", DeliveryID: "evt-1"}); got != "evt-1" {
		t.Fatalf("expected delivery id, got %q", got)
	}

	runs := provisioningRunHandlers()
	if got := runs.GetIdentifierValue(&provisioningRunRecord{ID: "run-1", Shop: "demo.myshopify.com"}); got != "run-1" {
		t.Fatalf("expected run id as natural key, got %q", got)
	}
	if got := shopThrottleHandlers().GetIdentifierValue(nil); got != "" {
		t.Fatalf("expected empty identifier for nil record, got %q", got)
	}
}

func TestKeyedHandlers_SetAndGetID(t *testing.T) {
	handlers := shopThrottleHandlers()
	record := handlers.NewRecord()
	if record == nil {
		t.Fatalf("expected a fresh record")
	}
	id := uuid.New()
	handlers.SetID(record, id)
	if record.ID != id.String() {
		t.Fatalf("expected id written to the row, got %q", record.ID)
	}
	if got := handlers.GetID(record); got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	if got := handlers.GetID(&shopThrottleRecord{ID: "not-a-uuid"}); got != uuid.Nil {
		t.Fatalf("expected nil uuid for malformed id, got %s", got)
	}
	if got := handlers.GetID(nil); got != uuid.Nil {
		t.Fatalf("expected nil uuid for nil record, got %s", got)
	}
	handlers.SetID(nil, id)
}
