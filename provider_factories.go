package provisioner

import (
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
)

func ShopifyProvider(cfg shopify.Config) (*shopify.Provider, error) {
	return shopify.New(cfg)
}

// ShopifyClientFactory builds per-tenant Admin API clients from store.
func ShopifyClientFactory(store core.CredentialStore, opts ...shopify.Option) core.ClientFactory {
	return shopify.NewClientFactory(store, opts...)
}
