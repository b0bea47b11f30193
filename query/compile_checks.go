package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-shopify-provisioner/core"
)

var (
	_ gocmd.Querier[ListRunsMessage, []core.ProvisioningRun] = (*ListRunsQuery)(nil)
	_ gocmd.Querier[InstallStatusMessage, core.InstallState] = (*InstallStatusQuery)(nil)
	_ gocmd.Querier[ListTenantsMessage, []core.TenantID]     = (*ListTenantsQuery)(nil)
)
