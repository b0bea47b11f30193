package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the durable webhooks.DeliveryLedger. Processed
// rows are kept, so a redelivery is deduped across restarts.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	topic string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}
	now := s.now()
	leaseUntil := now.Add(lease)

	record := &webhookDeliveryRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Topic:      strings.TrimSpace(topic),
		Status:     webhooks.DeliveryStatusProcessing,
		Attempts:   1,
		LeaseUntil: &leaseUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return record.toDomain(), true, nil
	}
	if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.get(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if existing.Status == webhooks.DeliveryStatusProcessed {
		return existing.toDomain(), false, nil
	}
	if existing.LeaseUntil != nil && now.Before(existing.LeaseUntil.UTC()) {
		return existing.toDomain(), false, nil
	}

	// Guarded on attempts so two processors cannot both take an expired lease.
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("lease_until = ?", leaseUntil).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return existing.toDomain(), false, nil
	}
	existing.Attempts++
	existing.LeaseUntil = &leaseUntil
	existing.UpdatedAt = now
	return existing.toDomain(), true, nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, deliveryID string) error {
	return s.update(ctx, deliveryID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", webhooks.DeliveryStatusProcessed).Set("lease_until = NULL")
	})
}

func (s *WebhookDeliveryStore) Release(ctx context.Context, deliveryID string) error {
	return s.update(ctx, deliveryID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("lease_until = NULL").Where("status = ?", webhooks.DeliveryStatusProcessing)
	})
}

func (s *WebhookDeliveryStore) update(
	ctx context.Context,
	deliveryID string,
	apply func(*bun.UpdateQuery) *bun.UpdateQuery,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID)
	result, err := apply(query).Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: webhook delivery %q is not claimed", deliveryID)
	}
	return nil
}

func (s *WebhookDeliveryStore) get(ctx context.Context, deliveryID string) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlstore: webhook delivery %q not found", deliveryID)
		}
		return nil, err
	}
	return record, nil
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	out := webhooks.DeliveryRecord{
		DeliveryID: r.DeliveryID,
		Topic:      r.Topic,
		Status:     r.Status,
		Attempts:   r.Attempts,
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.LeaseUntil != nil {
		out.LeaseUntil = r.LeaseUntil.UTC()
	}
	return out
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
