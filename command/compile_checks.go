package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-shopify-provisioner/core"
)

var (
	_ gocmd.Querier[ProvisionProductMessage, core.SagaResult] = (*ProvisionProductQuery)(nil)
	_ gocmd.Querier[CreateProductMessage, core.SagaResult]    = (*CreateProductQuery)(nil)
	_ gocmd.Commander[CompleteInstallMessage]                 = (*CompleteInstallCommand)(nil)
	_ gocmd.Commander[PutCredentialMessage]                   = (*PutCredentialCommand)(nil)
)
