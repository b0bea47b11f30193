package provisioner

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-shopify-provisioner/adapters/gocommand"
	provcommand "github.com/goliatone/go-shopify-provisioner/command"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/credentials"
	provquery "github.com/goliatone/go-shopify-provisioner/query"
)

type fakeProvisioning struct {
	tenants []core.TenantID
}

func (f *fakeProvisioning) Provision(_ context.Context, tenant core.TenantID, _ core.ProvisionRequest) (core.SagaResult, error) {
	f.tenants = append(f.tenants, tenant)
	return core.SagaResult{OK: true, StepsCompleted: core.StepsCompletedDone}, nil
}

func (f *fakeProvisioning) CreateProduct(_ context.Context, tenant core.TenantID, _ core.ProvisionRequest) (core.SagaResult, error) {
	f.tenants = append(f.tenants, tenant)
	return core.SagaResult{OK: true, StepsCompleted: core.StepsCompletedProductOnly}, nil
}

func TestNewFacade_RequiresDependencies(t *testing.T) {
	if _, err := NewFacade(Dependencies{}); err == nil {
		t.Fatalf("expected provisioning service error")
	}
	if _, err := NewFacade(Dependencies{Provisioning: &fakeProvisioning{}}); err == nil {
		t.Fatalf("expected credential store error")
	}
}

func TestNewFacade_LeavesOptionalHandlersNil(t *testing.T) {
	facade, err := NewFacade(Dependencies{
		Provisioning: &fakeProvisioning{},
		Credentials:  credentials.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().ProvisionProduct == nil || facade.Commands().PutCredential == nil {
		t.Fatalf("expected core commands to be built")
	}
	if facade.Commands().CompleteInstall != nil || facade.Queries().InstallStatus != nil {
		t.Fatalf("expected install handlers to be nil without an installer")
	}
	if facade.Queries().ListRuns != nil {
		t.Fatalf("expected run query to be nil without a run reader")
	}
}

func TestFacade_RegisterRoutesMessages(t *testing.T) {
	svc := &fakeProvisioning{}
	store := credentials.NewMemoryStore()
	facade, err := NewFacade(Dependencies{Provisioning: svc, Credentials: store})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()
	if err := facade.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	if err := gocommand.Dispatch(ctx, provcommand.PutCredentialMessage{
		Shop:   "Demo.myshopify.com",
		Record: core.CredentialRecord{AccessToken: "shpat_1"},
	}); err != nil {
		t.Fatalf("dispatch put credential: %v", err)
	}
	tenants, err := gocommand.Query[provquery.ListTenantsMessage, []core.TenantID](ctx, provquery.ListTenantsMessage{})
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0] != "demo.myshopify.com" {
		t.Fatalf("unexpected tenants %#v", tenants)
	}

	result, err := gocommand.Query[provcommand.CreateProductMessage, core.SagaResult](ctx, provcommand.CreateProductMessage{
		Shop:  "demo",
		Title: "Tee",
		SKU:   "S",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if result.StepsCompleted != core.StepsCompletedProductOnly || len(svc.tenants) != 1 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestNilFacadeRegisterFails(t *testing.T) {
	var facade *Facade
	if err := facade.Register(gocommand.NewRegistryAdapter(nil)); err == nil {
		t.Fatalf("expected nil facade error")
	}
}
