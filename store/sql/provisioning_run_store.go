package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultRunListLimit = 50

// ProvisioningRunStore records saga outcomes so half-configured products can
// be found and fixed by hand.
type ProvisioningRunStore struct {
	db   *bun.DB
	repo repository.Repository[*provisioningRunRecord]
}

func NewProvisioningRunStore(db *bun.DB) (*ProvisioningRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*provisioningRunRecord](db, provisioningRunHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid provisioning run repository wiring: %w", err)
		}
	}
	return &ProvisioningRunStore{db: db, repo: repo}, nil
}

func (s *ProvisioningRunStore) RecordRun(
	ctx context.Context,
	tenant core.TenantID,
	req core.ProvisionRequest,
	result core.SagaResult,
) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: provisioning run store is not configured")
	}
	record := newProvisioningRunRecord(tenant, req, result, time.Now().UTC())
	if _, err := s.repo.Create(ctx, record); err != nil {
		return core.NewStorageError(err, "sqlstore: record provisioning run")
	}
	return nil
}

func (s *ProvisioningRunStore) GetRun(ctx context.Context, runID string) (core.ProvisioningRun, error) {
	if s == nil || s.repo == nil {
		return core.ProvisioningRun{}, fmt.Errorf("sqlstore: provisioning run store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(runID))
	if err != nil {
		return core.ProvisioningRun{}, err
	}
	return record.toDomain(), nil
}

func (s *ProvisioningRunStore) ListRuns(ctx context.Context, filter core.RunFilter) ([]core.ProvisioningRun, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: provisioning run store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if shop := strings.TrimSpace(filter.TenantID.String()); shop != "" {
		selectors = append(selectors, repository.SelectBy("shop", "=", shop))
	}
	if filter.FailedOnly {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.ok = ?", false)
		}))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, core.NewStorageError(err, "sqlstore: list provisioning runs")
	}
	out := make([]core.ProvisioningRun, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func newProvisioningRunRecord(
	tenant core.TenantID,
	req core.ProvisionRequest,
	result core.SagaResult,
	now time.Time,
) *provisioningRunRecord {
	runID := strings.TrimSpace(result.RunID)
	if parseUUID(runID) == uuid.Nil {
		runID = uuid.NewString()
	}
	message := result.Message
	if message == "" && result.Err != nil {
		message = result.Err.Error()
	}
	productID := firstNonEmpty(result.ProductID, result.PartialIDs.ProductID)
	variantID := firstNonEmpty(result.VariantID, result.PartialIDs.VariantID)
	inventoryItemID := firstNonEmpty(result.InventoryItemID, result.PartialIDs.InventoryItemID)
	return &provisioningRunRecord{
		ID:              runID,
		Shop:            tenant.String(),
		Title:           req.Title,
		SKU:             req.SKU,
		Price:           req.Price,
		CurrencyCode:    req.CurrencyCode,
		Quantity:        req.Quantity,
		LocationID:      req.LocationID,
		OK:              result.OK,
		StepsCompleted:  result.StepsCompleted,
		FailedStep:      string(result.FailedStep),
		Message:         message,
		UserErrors:      append([]core.UserError{}, result.UserErrors...),
		Transitions:     append([]core.SagaState{}, result.Transitions...),
		ProductID:       productID,
		VariantID:       variantID,
		InventoryItemID: inventoryItemID,
		CreatedAt:       now,
	}
}

func (r *provisioningRunRecord) toDomain() core.ProvisioningRun {
	if r == nil {
		return core.ProvisioningRun{}
	}
	result := core.SagaResult{
		OK:             r.OK,
		RunID:          r.ID,
		StepsCompleted: r.StepsCompleted,
		FailedStep:     core.StepName(r.FailedStep),
		UserErrors:     append([]core.UserError(nil), r.UserErrors...),
		Message:        r.Message,
		Transitions:    append([]core.SagaState(nil), r.Transitions...),
	}
	ids := core.PartialIDs{
		ProductID:       r.ProductID,
		VariantID:       r.VariantID,
		InventoryItemID: r.InventoryItemID,
	}
	if r.OK {
		result.ProductID = ids.ProductID
		result.VariantID = ids.VariantID
		result.InventoryItemID = ids.InventoryItemID
	} else {
		result.PartialIDs = ids
	}
	return core.ProvisioningRun{
		RunID:    r.ID,
		TenantID: core.TenantID(r.Shop),
		Request: core.ProvisionRequest{
			Title:        r.Title,
			Price:        r.Price,
			SKU:          r.SKU,
			Quantity:     r.Quantity,
			LocationID:   r.LocationID,
			CurrencyCode: r.CurrencyCode,
		},
		Result:    result,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
