package provisioner

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-shopify-provisioner/adapters/gocommand"
	provcommand "github.com/goliatone/go-shopify-provisioner/command"
	"github.com/goliatone/go-shopify-provisioner/core"
	provquery "github.com/goliatone/go-shopify-provisioner/query"
)

// Installer is satisfied by install.Flow.
type Installer interface {
	provcommand.InstallCompleter
	provquery.InstallStatusReader
}

type Dependencies struct {
	Provisioning provcommand.ProvisioningService
	Installer    Installer
	Credentials  core.CredentialStore
	Runs         core.RunReader
}

type Commands struct {
	ProvisionProduct *provcommand.ProvisionProductQuery
	CreateProduct    *provcommand.CreateProductQuery
	CompleteInstall  *provcommand.CompleteInstallCommand
	PutCredential    *provcommand.PutCredentialCommand
}

type Queries struct {
	ListRuns      *provquery.ListRunsQuery
	InstallStatus *provquery.InstallStatusQuery
	ListTenants   *provquery.ListTenantsQuery
}

// Facade bundles the command and query handlers over one set of
// dependencies. Handlers whose dependency is missing are left nil.
type Facade struct {
	commands Commands
	queries  Queries
}

func NewFacade(deps Dependencies) (*Facade, error) {
	if deps.Provisioning == nil {
		return nil, fmt.Errorf("provisioner: provisioning service is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("provisioner: credential store is required")
	}

	facade := &Facade{}
	facade.commands = Commands{
		ProvisionProduct: provcommand.NewProvisionProductQuery(deps.Provisioning),
		CreateProduct:    provcommand.NewCreateProductQuery(deps.Provisioning),
		PutCredential:    provcommand.NewPutCredentialCommand(deps.Credentials),
	}
	facade.queries = Queries{
		ListTenants: provquery.NewListTenantsQuery(deps.Credentials),
	}
	if deps.Installer != nil {
		facade.commands.CompleteInstall = provcommand.NewCompleteInstallCommand(deps.Installer)
		facade.queries.InstallStatus = provquery.NewInstallStatusQuery(deps.Installer)
	}
	if deps.Runs != nil {
		facade.queries.ListRuns = provquery.NewListRunsQuery(deps.Runs)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// Register subscribes every configured handler on the go-command
// dispatcher. Close the adapter to unsubscribe.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter, opts ...runner.Option) error {
	if f == nil {
		return fmt.Errorf("provisioner: facade is nil")
	}
	return gocommand.RegisterHandlers(adapter, gocommand.Handlers{
		ProvisionProduct: f.commands.ProvisionProduct,
		CreateProduct:    f.commands.CreateProduct,
		CompleteInstall:  f.commands.CompleteInstall,
		PutCredential:    f.commands.PutCredential,
		ListRuns:         f.queries.ListRuns,
		InstallStatus:    f.queries.InstallStatus,
		ListTenants:      f.queries.ListTenants,
	}, opts...)
}
