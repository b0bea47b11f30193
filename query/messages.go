package query

import (
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
)

const (
	TypeListRuns      = "provisioner.query.runs.list"
	TypeInstallStatus = "provisioner.query.install.status"
	TypeListTenants   = "provisioner.query.tenants.list"

	maxRunsLimit = 500
)

type ListRunsMessage struct {
	Shop       string
	FailedOnly bool
	Limit      int
}

func (ListRunsMessage) Type() string { return TypeListRuns }

func (m ListRunsMessage) Validate() error {
	if m.Limit < 0 || m.Limit > maxRunsLimit {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	if strings.TrimSpace(m.Shop) != "" {
		if _, err := core.NormalizeTenantID(m.Shop); err != nil {
			return queryValidationError("shop", err.Error())
		}
	}
	return nil
}

// Filter converts the message into a store filter. An invalid shop is left
// empty; Validate rejects it first.
func (m ListRunsMessage) Filter() core.RunFilter {
	filter := core.RunFilter{FailedOnly: m.FailedOnly, Limit: m.Limit}
	if tenant, err := core.NormalizeTenantID(m.Shop); err == nil {
		filter.TenantID = tenant
	}
	return filter
}

type InstallStatusMessage struct {
	Shop string
}

func (InstallStatusMessage) Type() string { return TypeInstallStatus }

func (m InstallStatusMessage) Validate() error {
	if strings.TrimSpace(m.Shop) == "" {
		return queryValidationError("shop", "shop is required")
	}
	return nil
}

type ListTenantsMessage struct{}

func (ListTenantsMessage) Type() string { return TypeListTenants }
