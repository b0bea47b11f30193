package shopify

import (
	"context"
	"fmt"

	"github.com/goliatone/go-shopify-provisioner/core"
)

// ClientFactory builds tenant clients from the credential store. The
// credential is read on every Create, so a re-install takes effect on the
// next call.
type ClientFactory struct {
	store core.CredentialStore
	opts  []Option
}

func NewClientFactory(store core.CredentialStore, opts ...Option) *ClientFactory {
	return &ClientFactory{
		store: store,
		opts:  append([]Option(nil), opts...),
	}
}

func (f *ClientFactory) Create(ctx context.Context, tenant core.TenantID) (core.AdminClient, error) {
	if f == nil || f.store == nil {
		return nil, fmt.Errorf("providers/shopify: credential store is not configured")
	}
	record, ok, err := f.store.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewCredentialNotFoundError(tenant)
	}
	return NewClient(tenant, record.AccessToken, f.opts...)
}

var _ core.ClientFactory = (*ClientFactory)(nil)
