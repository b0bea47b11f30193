package query

import (
	"context"

	"github.com/goliatone/go-shopify-provisioner/core"
)

// InstallStatusReader is satisfied by install.Flow.
type InstallStatusReader interface {
	Status(ctx context.Context, shop string) (core.InstallState, error)
}

type TenantLister interface {
	List(ctx context.Context) ([]core.TenantID, error)
}

type ListRunsQuery struct {
	reader core.RunReader
}

func NewListRunsQuery(reader core.RunReader) *ListRunsQuery {
	return &ListRunsQuery{reader: reader}
}

func (q *ListRunsQuery) Query(ctx context.Context, msg ListRunsMessage) ([]core.ProvisioningRun, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: run reader is required")
	}
	return q.reader.ListRuns(ctx, msg.Filter())
}

type InstallStatusQuery struct {
	reader InstallStatusReader
}

func NewInstallStatusQuery(reader InstallStatusReader) *InstallStatusQuery {
	return &InstallStatusQuery{reader: reader}
}

func (q *InstallStatusQuery) Query(ctx context.Context, msg InstallStatusMessage) (core.InstallState, error) {
	if q == nil || q.reader == nil {
		return core.InstallStateUnauthorized, queryDependencyError("query: install status reader is required")
	}
	return q.reader.Status(ctx, msg.Shop)
}

type ListTenantsQuery struct {
	lister TenantLister
}

func NewListTenantsQuery(lister TenantLister) *ListTenantsQuery {
	return &ListTenantsQuery{lister: lister}
}

func (q *ListTenantsQuery) Query(ctx context.Context, _ ListTenantsMessage) ([]core.TenantID, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: credential store is required")
	}
	return q.lister.List(ctx)
}
