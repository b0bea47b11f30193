package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/install"
)

// ProvisioningService is satisfied by saga.Service.
type ProvisioningService interface {
	Provision(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error)
	CreateProduct(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error)
}

// InstallCompleter is satisfied by install.Flow.
type InstallCompleter interface {
	Complete(ctx context.Context, req install.CallbackRequest) (install.CompleteResult, error)
}

type ProvisionProductQuery struct {
	service ProvisioningService
}

func NewProvisionProductQuery(service ProvisioningService) *ProvisionProductQuery {
	return &ProvisionProductQuery{service: service}
}

func (q *ProvisionProductQuery) Query(ctx context.Context, msg ProvisionProductMessage) (core.SagaResult, error) {
	if q == nil || q.service == nil {
		return core.SagaResult{}, commandDependencyError("command: provisioning service is required")
	}
	return q.service.Provision(ctx, core.TenantID(msg.Shop), msg.Request)
}

type CreateProductQuery struct {
	service ProvisioningService
}

func NewCreateProductQuery(service ProvisioningService) *CreateProductQuery {
	return &CreateProductQuery{service: service}
}

func (q *CreateProductQuery) Query(ctx context.Context, msg CreateProductMessage) (core.SagaResult, error) {
	if q == nil || q.service == nil {
		return core.SagaResult{}, commandDependencyError("command: provisioning service is required")
	}
	return q.service.CreateProduct(ctx, core.TenantID(msg.Shop), core.ProvisionRequest{
		Title: msg.Title,
		SKU:   msg.SKU,
	})
}

type CompleteInstallCommand struct {
	installer InstallCompleter
}

func NewCompleteInstallCommand(installer InstallCompleter) *CompleteInstallCommand {
	return &CompleteInstallCommand{installer: installer}
}

func (c *CompleteInstallCommand) Execute(ctx context.Context, msg CompleteInstallMessage) error {
	if c == nil || c.installer == nil {
		return commandDependencyError("command: install flow is required")
	}
	out, err := c.installer.Complete(ctx, msg.Callback)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PutCredentialCommand struct {
	store core.CredentialStore
	now   func() time.Time
}

func NewPutCredentialCommand(store core.CredentialStore) *PutCredentialCommand {
	return &PutCredentialCommand{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *PutCredentialCommand) Execute(ctx context.Context, msg PutCredentialMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: credential store is required")
	}
	tenant, err := core.NormalizeTenantID(msg.Shop)
	if err != nil {
		return commandValidationError("shop", err.Error())
	}
	record := msg.Record
	if record.InstalledAt.IsZero() {
		record.InstalledAt = c.now()
	}
	if err := c.store.Put(ctx, tenant, record); err != nil {
		return err
	}
	storeResult(ctx, tenant)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
