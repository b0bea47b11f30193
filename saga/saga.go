package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/google/uuid"
)

type Option func(*Saga)

// WithRunIDGenerator replaces the uuid run id source.
func WithRunIDGenerator(fn func() string) Option {
	return func(s *Saga) {
		if fn != nil {
			s.newRunID = fn
		}
	}
}

// WithReferencePrefix sets the inventory reference document prefix. The run
// id is appended to it.
func WithReferencePrefix(prefix string) Option {
	return func(s *Saga) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.referencePrefix = prefix
		}
	}
}

// WithProductDefaults fills optional product attributes on every create.
// The title always comes from the request.
func WithProductDefaults(defaults core.ProductCreateInput) Option {
	return func(s *Saga) {
		s.productDefaults = defaults
	}
}

func WithObserver(observer *core.Observer) Option {
	return func(s *Saga) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// Saga runs productCreate, productVariantsBulkUpdate and
// inventoryAdjustQuantities in order. It never retries and never undoes a
// completed step; a failure reports the ids created so far.
type Saga struct {
	newRunID        func() string
	referencePrefix string
	productDefaults core.ProductCreateInput
	observer        *core.Observer
}

func New(opts ...Option) *Saga {
	s := &Saga{
		newRunID:        uuid.NewString,
		referencePrefix: core.DefaultInventoryReferencePrefix,
		observer:        core.NewObserver("saga", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run provisions one product. The request is expected to be validated.
func (s *Saga) Run(ctx context.Context, client core.AdminClient, req core.ProvisionRequest) core.SagaResult {
	req = req.Normalized()
	run := s.start(req)
	if client == nil {
		return run.fail(core.StepProductCreate, fmt.Errorf("saga: admin client is required"))
	}

	created, ok := s.createProduct(ctx, client, req, run)
	if !ok {
		return run.result
	}

	if !s.priceVariant(ctx, client, req, created, run) {
		return run.result
	}

	if created.InventoryItemID == "" || req.Quantity == 0 {
		run.advance(core.SagaStateInventorySkipped)
		return run.succeed(created, core.StepsCompletedWithoutInventory)
	}

	if !s.adjustInventory(ctx, client, req, created, run) {
		return run.result
	}
	return run.succeed(created, core.StepsCompletedDone)
}

// CreateProductOnly runs the first step alone.
func (s *Saga) CreateProductOnly(ctx context.Context, client core.AdminClient, req core.ProvisionRequest) core.SagaResult {
	req = req.Normalized()
	run := s.start(req)
	if client == nil {
		return run.fail(core.StepProductCreate, fmt.Errorf("saga: admin client is required"))
	}
	created, ok := s.createProduct(ctx, client, req, run)
	if !ok {
		return run.result
	}
	return run.succeed(created, core.StepsCompletedProductOnly)
}

func (s *Saga) start(req core.ProvisionRequest) *runState {
	return &runState{result: core.SagaResult{
		RunID:        s.newRunID(),
		CurrencyCode: req.CurrencyCode,
		Transitions:  []core.SagaState{core.SagaStateStart},
	}}
}

func (s *Saga) createProduct(ctx context.Context, client core.AdminClient, req core.ProvisionRequest, run *runState) (core.ProductCreatePayload, bool) {
	input := s.productDefaults
	input.Title = req.Title

	startedAt := time.Now()
	payload, err := client.ProductCreate(ctx, input)
	err = stepError(core.StepProductCreate, payload.UserErrors, err)
	if err == nil && (payload.ProductID == "" || payload.VariantID == "") {
		err = core.NewMalformedResponseError(core.StepProductCreate, "product or default variant id missing")
	}
	s.observe(ctx, startedAt, core.StepProductCreate, run, err, map[string]any{
		"product_id":        payload.ProductID,
		"variant_id":        payload.VariantID,
		"inventory_item_id": payload.InventoryItemID,
	})

	run.partial.ProductID = payload.ProductID
	run.partial.VariantID = payload.VariantID
	run.partial.InventoryItemID = payload.InventoryItemID
	if err != nil {
		run.fail(core.StepProductCreate, err)
		return payload, false
	}
	run.advance(core.SagaStateProductCreated)
	return payload, true
}

func (s *Saga) priceVariant(ctx context.Context, client core.AdminClient, req core.ProvisionRequest, created core.ProductCreatePayload, run *runState) bool {
	startedAt := time.Now()
	payload, err := client.ProductVariantsBulkUpdate(ctx, created.ProductID, []core.VariantPriceInput{{
		ID:           created.VariantID,
		Price:        req.Price,
		CurrencyCode: req.CurrencyCode,
		SKU:          req.SKU,
	}})
	err = stepError(core.StepProductVariantsBulkUpdate, payload.UserErrors, err)
	s.observe(ctx, startedAt, core.StepProductVariantsBulkUpdate, run, err, map[string]any{
		"product_id":    created.ProductID,
		"variant_id":    created.VariantID,
		"currency_code": req.CurrencyCode,
	})
	if err != nil {
		run.fail(core.StepProductVariantsBulkUpdate, err)
		return false
	}
	run.advance(core.SagaStateVariantPriced)
	return true
}

// adjustInventory sends the requested quantity as a delta. That equals an
// absolute set only while on-hand stock is zero, which holds for a variant
// created moments earlier.
func (s *Saga) adjustInventory(ctx context.Context, client core.AdminClient, req core.ProvisionRequest, created core.ProductCreatePayload, run *runState) bool {
	startedAt := time.Now()
	payload, err := client.InventoryAdjustQuantities(ctx, core.InventoryAdjustInput{
		InventoryItemID:      created.InventoryItemID,
		LocationID:           req.LocationID,
		Delta:                req.Quantity,
		Reason:               core.InventoryAdjustReason,
		Name:                 core.InventoryQuantityNameAvailable,
		ReferenceDocumentURI: s.referencePrefix + run.result.RunID,
	})
	err = stepError(core.StepInventoryAdjustQuantities, payload.UserErrors, err)
	s.observe(ctx, startedAt, core.StepInventoryAdjustQuantities, run, err, map[string]any{
		"inventory_item_id": created.InventoryItemID,
		"location_id":       req.LocationID,
		"delta":             req.Quantity,
	})
	if err != nil {
		run.fail(core.StepInventoryAdjustQuantities, err)
		return false
	}
	run.advance(core.SagaStateInventoryAdjusted)
	return true
}

func (s *Saga) observe(ctx context.Context, startedAt time.Time, step core.StepName, run *runState, err error, fields map[string]any) {
	fields["run_id"] = run.result.RunID
	fields["step"] = string(step)
	s.observer.Observe(ctx, startedAt, stepOperation(step), err, fields)
}

// stepError turns a step outcome into the error the saga fails with. User
// errors win over a nil transport error.
func stepError(step core.StepName, userErrors []core.UserError, err error) error {
	if err != nil {
		if _, ok := core.FailedStep(err); ok {
			return err
		}
		return core.NewRemoteTransportError(step, err)
	}
	if len(userErrors) > 0 {
		return core.NewRemoteValidationError(step, userErrors)
	}
	return nil
}

func stepOperation(step core.StepName) string {
	switch step {
	case core.StepProductCreate:
		return "product_create"
	case core.StepProductVariantsBulkUpdate:
		return "variants_bulk_update"
	case core.StepInventoryAdjustQuantities:
		return "inventory_adjust"
	default:
		return string(step)
	}
}
