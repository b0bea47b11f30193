package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
)

type ServiceOption func(*Service)

// WithRecorder stores every run outcome. Recording errors are logged and
// never change the result.
func WithRecorder(recorder core.RunRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func WithServiceObserver(observer *core.Observer) ServiceOption {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// Service resolves the tenant client and runs the saga for it.
type Service struct {
	clients  core.ClientFactory
	saga     *Saga
	recorder core.RunRecorder
	observer *core.Observer
}

func NewService(clients core.ClientFactory, saga *Saga, opts ...ServiceOption) (*Service, error) {
	if clients == nil {
		return nil, fmt.Errorf("saga: client factory is required")
	}
	if saga == nil {
		saga = New()
	}
	s := &Service{
		clients:  clients,
		saga:     saga,
		observer: core.NewObserver("provisioner", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Provision runs the full saga. The error return covers problems found
// before any remote call: bad input or a tenant without a credential. Step
// failures are reported in the result.
func (s *Service) Provision(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error) {
	return s.execute(ctx, "provision", tenant, req, req.Validate, s.saga.Run)
}

// CreateProduct runs productCreate alone.
func (s *Service) CreateProduct(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error) {
	return s.execute(ctx, "create_product", tenant, req, func() error {
		return validateCreateOnly(req)
	}, s.saga.CreateProductOnly)
}

func (s *Service) execute(
	ctx context.Context,
	operation string,
	tenant core.TenantID,
	req core.ProvisionRequest,
	validate func() error,
	run func(context.Context, core.AdminClient, core.ProvisionRequest) core.SagaResult,
) (core.SagaResult, error) {
	startedAt := time.Now()
	fields := map[string]any{"shop": tenant.String(), "sku": req.SKU}

	normalized, err := core.NormalizeTenantID(tenant.String())
	if err != nil {
		err = core.NewBadInputError("invalid shop", map[string]string{"shop": err.Error()})
		s.observer.Observe(ctx, startedAt, operation, err, fields)
		return core.SagaResult{}, err
	}
	fields["shop"] = normalized.String()

	if err := validate(); err != nil {
		s.observer.Observe(ctx, startedAt, operation, err, fields)
		return core.SagaResult{}, err
	}

	client, err := s.clients.Create(ctx, normalized)
	if err != nil {
		s.observer.Observe(ctx, startedAt, operation, err, fields)
		return core.SagaResult{}, err
	}

	result := run(ctx, client, req.Normalized())
	fields["run_id"] = result.RunID
	fields["steps_completed"] = result.StepsCompleted
	if !result.OK {
		fields["failed_step"] = string(result.FailedStep)
		fields["product_id"] = result.PartialIDs.ProductID
	} else {
		fields["product_id"] = result.ProductID
	}
	s.record(ctx, normalized, req.Normalized(), result)
	s.observer.Observe(ctx, startedAt, operation, result.Err, fields)
	return result, nil
}

func (s *Service) record(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest, result core.SagaResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordRun(ctx, tenant, req, result); err != nil {
		s.observer.Logger().WithContext(ctx).Warn("provisioning run not recorded",
			"shop", tenant.String(),
			"run_id", result.RunID,
			"error", err.Error(),
		)
	}
}

func validateCreateOnly(req core.ProvisionRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "title is required"
	}
	if strings.TrimSpace(req.SKU) == "" {
		fields["sku"] = "sku is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return core.NewBadInputError("saga: invalid create request", fields)
}
