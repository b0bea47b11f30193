package shopify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/providers"
)

const (
	ProviderID = "shopify"

	// APIVersion is the only Admin API version this module speaks. The
	// documents in operations.go are written against it.
	APIVersion = "2024-07"

	defaultAuthorizePath = "/admin/oauth/authorize"
	defaultTokenPath     = "/admin/oauth/access_token"
)

const (
	ScopeReadProducts   = "read_products"
	ScopeWriteProducts  = "write_products"
	ScopeReadInventory  = "read_inventory"
	ScopeWriteInventory = "write_inventory"
)

type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   providers.HTTPDoer
	ShopURL      func(core.TenantID) string
	Now          func() time.Time
}

// Provider runs the Shopify OAuth install against each shop's own host.
type Provider struct {
	*providers.OAuth2Provider
	shopURL func(core.TenantID) string
	now     func() time.Time
}

func DefaultScopes() []string {
	return []string{ScopeReadProducts, ScopeWriteProducts, ScopeReadInventory, ScopeWriteInventory}
}

func New(cfg Config) (*Provider, error) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.ShopURL == nil {
		cfg.ShopURL = DefaultShopURL
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	oauthProvider, err := providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                 ProviderID,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		TokenRequestFormat: providers.TokenRequestJSON,
		DefaultScopes:      normalizeShopifyScopes(cfg.Scopes),
		ScopeSeparator:     ",",
		HTTPClient:         cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{
		OAuth2Provider: oauthProvider,
		shopURL:        cfg.ShopURL,
		now:            cfg.Now,
	}, nil
}

// DefaultShopURL is https://{shop}.
func DefaultShopURL(tenant core.TenantID) string {
	return (&url.URL{Scheme: "https", Host: tenant.String()}).String()
}

func (p *Provider) AuthorizeEndpoint(tenant core.TenantID) string {
	return strings.TrimSuffix(p.shopURL(tenant), "/") + defaultAuthorizePath
}

func (p *Provider) TokenEndpoint(tenant core.TenantID) string {
	return strings.TrimSuffix(p.shopURL(tenant), "/") + defaultTokenPath
}

func (p *Provider) InstallURL(tenant core.TenantID, redirectURI, state string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers/shopify: provider is nil")
	}
	return p.AuthorizeURL(providers.AuthorizeRequest{
		AuthURL:     p.AuthorizeEndpoint(tenant),
		RedirectURI: redirectURI,
		State:       state,
	})
}

// ExchangeCode trades the callback code for an offline access token.
func (p *Provider) ExchangeCode(ctx context.Context, tenant core.TenantID, code string) (core.CredentialRecord, error) {
	if p == nil {
		return core.CredentialRecord{}, fmt.Errorf("providers/shopify: provider is nil")
	}
	token, err := p.OAuth2Provider.ExchangeCode(ctx, providers.ExchangeRequest{
		TokenURL: p.TokenEndpoint(tenant),
		Code:     code,
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return core.CredentialRecord{
		AccessToken: token.AccessToken,
		Scope:       strings.Join(normalizeShopifyScopes(providers.ParseScopeList(token.Scope)), ","),
		InstalledAt: p.now().UTC(),
	}, nil
}

func normalizeShopifyScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		normalized := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(scope)), "shopify:")
		if normalized != "" {
			out = append(out, normalized)
		}
	}
	return providers.NormalizeScopes(out)
}

var _ core.TokenExchanger = (*Provider)(nil)
