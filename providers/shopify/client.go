package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/ratelimit"
	"github.com/goliatone/go-shopify-provisioner/transport"
)

const accessTokenHeader = "X-Shopify-Access-Token"

const maxErrorBodySnippet = 256

type Option func(*options)

type options struct {
	httpClient transport.HTTPDoer
	logger     core.Logger
	shopURL    func(core.TenantID) string
	throttle   ThrottlePolicy
}

// ThrottlePolicy gates calls on the shop's last reported call budget.
// ratelimit.AdaptivePolicy satisfies it.
type ThrottlePolicy interface {
	BeforeCall(ctx context.Context, tenant core.TenantID) error
	AfterCall(ctx context.Context, tenant core.TenantID, obs ratelimit.Observation) error
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithThrottle(policy ThrottlePolicy) Option {
	return func(o *options) {
		o.throttle = policy
	}
}

// WithShopURL overrides the https://{shop} base, mostly for tests.
func WithShopURL(fn func(core.TenantID) string) Option {
	return func(o *options) {
		if fn != nil {
			o.shopURL = fn
		}
	}
}

func resolveOptions(opts []Option) options {
	resolved := options{
		logger:  glog.Nop(),
		shopURL: DefaultShopURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// AdminGraphQLEndpoint returns the versioned Admin GraphQL URL under base.
func AdminGraphQLEndpoint(base string) string {
	return strings.TrimSuffix(base, "/") + "/admin/api/" + APIVersion + "/graphql.json"
}

// Client is an Admin API client bound to one tenant and its access token.
type Client struct {
	tenant   core.TenantID
	token    string
	graphql  *transport.GraphQLAdapter
	logger   core.Logger
	throttle ThrottlePolicy
}

func NewClient(tenant core.TenantID, accessToken string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(tenant.String()) == "" {
		return nil, fmt.Errorf("providers/shopify: tenant is required")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrMissingAdminToken
	}
	resolved := resolveOptions(opts)
	adapter := transport.NewGraphQLAdapter(AdminGraphQLEndpoint(resolved.shopURL(tenant)), resolved.httpClient)
	adapter.REST.Logger = resolved.logger
	return &Client{
		tenant:   tenant,
		token:    accessToken,
		graphql:  adapter,
		logger:   resolved.logger,
		throttle: resolved.throttle,
	}, nil
}

func (c *Client) Tenant() core.TenantID {
	return c.tenant
}

func (c *Client) Endpoint() string {
	return c.graphql.Endpoint
}

func (c *Client) ProductCreate(ctx context.Context, input core.ProductCreateInput) (core.ProductCreatePayload, error) {
	var data productCreateData
	if err := c.execute(ctx, core.StepProductCreate, "ProductCreate", productCreateMutation, productCreateVariables(input), &data); err != nil {
		return core.ProductCreatePayload{}, err
	}
	if data.ProductCreate == nil {
		return core.ProductCreatePayload{}, core.NewMalformedResponseError(core.StepProductCreate, "productCreate field missing")
	}

	payload := core.ProductCreatePayload{UserErrors: toUserErrors(data.ProductCreate.UserErrors)}
	if product := data.ProductCreate.Product; product != nil {
		payload.ProductID = product.ID
		payload.Title = product.Title
		if len(product.Variants.Nodes) > 0 {
			variant := product.Variants.Nodes[0]
			payload.VariantID = variant.ID
			if variant.InventoryItem != nil {
				payload.InventoryItemID = variant.InventoryItem.ID
			}
		}
	}
	return payload, nil
}

// ProductUpdate edits basic fields of an existing product. User errors come
// back on the payload, as with ProductCreate.
func (c *Client) ProductUpdate(ctx context.Context, input core.ProductUpdateInput) (core.ProductUpdatePayload, error) {
	if strings.TrimSpace(input.ID) == "" {
		return core.ProductUpdatePayload{}, core.NewBadInputError("product id is required", map[string]string{"id": "product id is required"})
	}
	var data productUpdateData
	if err := c.execute(ctx, core.StepProductUpdate, "ProductUpdateBasic", productUpdateMutation, productUpdateVariables(input), &data); err != nil {
		return core.ProductUpdatePayload{}, err
	}
	if data.ProductUpdate == nil {
		return core.ProductUpdatePayload{}, core.NewMalformedResponseError(core.StepProductUpdate, "productUpdate field missing")
	}

	payload := core.ProductUpdatePayload{UserErrors: toUserErrors(data.ProductUpdate.UserErrors)}
	if product := data.ProductUpdate.Product; product != nil {
		payload.ProductID = product.ID
		payload.Title = product.Title
	}
	return payload, nil
}

func (c *Client) ProductVariantsBulkUpdate(ctx context.Context, productID string, variants []core.VariantPriceInput) (core.VariantsBulkUpdatePayload, error) {
	var data productVariantsBulkUpdateData
	variables := productVariantsBulkUpdateVariables(productID, variants)
	if err := c.execute(ctx, core.StepProductVariantsBulkUpdate, "ProductVariantsBulkUpdate", productVariantsBulkUpdateMutation, variables, &data); err != nil {
		return core.VariantsBulkUpdatePayload{}, err
	}
	if data.ProductVariantsBulkUpdate == nil {
		return core.VariantsBulkUpdatePayload{}, core.NewMalformedResponseError(core.StepProductVariantsBulkUpdate, "productVariantsBulkUpdate field missing")
	}

	payload := core.VariantsBulkUpdatePayload{UserErrors: toUserErrors(data.ProductVariantsBulkUpdate.UserErrors)}
	for _, variant := range data.ProductVariantsBulkUpdate.ProductVariants {
		payload.VariantIDs = append(payload.VariantIDs, variant.ID)
	}
	return payload, nil
}

func (c *Client) InventoryAdjustQuantities(ctx context.Context, input core.InventoryAdjustInput) (core.InventoryAdjustPayload, error) {
	var data inventoryAdjustQuantitiesData
	variables := inventoryAdjustQuantitiesVariables(input)
	if err := c.execute(ctx, core.StepInventoryAdjustQuantities, "InventoryAdjustQuantities", inventoryAdjustQuantitiesMutation, variables, &data); err != nil {
		return core.InventoryAdjustPayload{}, err
	}
	if data.InventoryAdjustQuantities == nil {
		return core.InventoryAdjustPayload{}, core.NewMalformedResponseError(core.StepInventoryAdjustQuantities, "inventoryAdjustQuantities field missing")
	}

	payload := core.InventoryAdjustPayload{UserErrors: toUserErrors(data.InventoryAdjustQuantities.UserErrors)}
	if group := data.InventoryAdjustQuantities.InventoryAdjustmentGroup; group != nil {
		payload.AdjustmentGroupID = group.ID
	}
	return payload, nil
}

// execute sends one mutation and decodes its data into target. Network
// failures, non-2xx answers and top-level GraphQL errors are transport
// errors; a body that cannot be decoded is a malformed response.
func (c *Client) execute(
	ctx context.Context,
	step core.StepName,
	operation string,
	query string,
	variables map[string]any,
	target any,
) error {
	if c.throttle != nil {
		if err := c.throttle.BeforeCall(ctx, c.tenant); err != nil {
			return core.NewRemoteTransportError(step, err)
		}
	}
	response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
		Query:         query,
		OperationName: operation,
		Variables:     variables,
		Headers:       map[string]string{accessTokenHeader: c.token},
	})
	if err != nil {
		return core.NewRemoteTransportError(step, err)
	}

	meta := NormalizeAdminAPIResponse(response)
	logger := c.logger.WithContext(ctx)
	if c.throttle != nil {
		if err := c.throttle.AfterCall(ctx, c.tenant, meta.Observation()); err != nil {
			logger.Warn("shopify call budget not recorded", "shop", c.tenant.String(), "error", err.Error())
		}
	}

	if !transport.IsSuccess(response.StatusCode) {
		logger.Warn("shopify admin call rejected", append([]any{"shop", c.tenant.String(), "operation", operation}, meta.LogFields()...)...)
		return core.NewRemoteTransportError(step, fmt.Errorf("http status %d: %s", response.StatusCode, snippet(response.Body)))
	}

	envelope, err := transport.DecodeGraphQLEnvelope(response.Body)
	if err != nil {
		return core.NewMalformedResponseError(step, err.Error())
	}
	meta.ApplyQueryCost(envelope.Extensions)
	logger.Debug("shopify admin call", append([]any{"shop", c.tenant.String(), "operation", operation}, meta.LogFields()...)...)

	if messages := envelope.ErrorMessages(); len(messages) > 0 {
		return core.NewRemoteTransportError(step, fmt.Errorf("graphql errors: %s", strings.Join(messages, "; ")))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return core.NewMalformedResponseError(step, "response has no data")
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return core.NewMalformedResponseError(step, err.Error())
	}
	return nil
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodySnippet {
		return text[:maxErrorBodySnippet] + "..."
	}
	return text
}

var _ core.AdminClient = (*Client)(nil)
