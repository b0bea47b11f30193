package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
)

type DeliveryRecord struct {
	DeliveryID string
	Topic      string
	Status     string
	Attempts   int
	LeaseUntil time.Time
	UpdatedAt  time.Time
}

// DeliveryLedger claims a delivery id for one processor at a time.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, topic string, lease time.Duration) (DeliveryRecord, bool, error)
	Complete(ctx context.Context, deliveryID string) error
	Release(ctx context.Context, deliveryID string) error
}

// MemoryLedger keeps processed ids for Retention so redeliveries are
// acknowledged without running the handler again.
type MemoryLedger struct {
	Retention time.Duration
	Now       func() time.Time

	mu      sync.Mutex
	records map[string]DeliveryRecord
}

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryLedger{
		Retention: retention,
		Now:       func() time.Time { return time.Now().UTC() },
		records:   map[string]DeliveryRecord{},
	}
}

func (l *MemoryLedger) Claim(_ context.Context, deliveryID string, topic string, lease time.Duration) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: ledger is nil")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)

	record, ok := l.records[deliveryID]
	if ok {
		if record.Status == DeliveryStatusProcessed {
			return record, false, nil
		}
		if record.Status == DeliveryStatusProcessing && now.Before(record.LeaseUntil) {
			return record, false, nil
		}
	}
	record = DeliveryRecord{
		DeliveryID: deliveryID,
		Topic:      topic,
		Status:     DeliveryStatusProcessing,
		Attempts:   record.Attempts + 1,
		LeaseUntil: now.Add(lease),
		UpdatedAt:  now,
	}
	l.records[deliveryID] = record
	return record, true, nil
}

func (l *MemoryLedger) Complete(_ context.Context, deliveryID string) error {
	return l.update(deliveryID, func(record *DeliveryRecord) {
		record.Status = DeliveryStatusProcessed
	})
}

func (l *MemoryLedger) Release(_ context.Context, deliveryID string) error {
	return l.update(deliveryID, func(record *DeliveryRecord) {
		record.LeaseUntil = time.Time{}
	})
}

func (l *MemoryLedger) update(deliveryID string, apply func(*DeliveryRecord)) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[deliveryID]
	if !ok {
		return fmt.Errorf("webhooks: delivery %q is not claimed", deliveryID)
	}
	apply(&record)
	record.UpdatedAt = l.now()
	l.records[deliveryID] = record
	return nil
}

func (l *MemoryLedger) prune(now time.Time) {
	for id, record := range l.records {
		if now.Sub(record.UpdatedAt) > l.Retention {
			delete(l.records, id)
		}
	}
}

func (l *MemoryLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
