package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Admin API Money amounts: digits with at most four decimals.
var decimalPrice = regexp.MustCompile(`^\d+(\.\d{1,4})?$`)

const (
	DefaultCurrencyCode = "JPY"
	shopDomainSuffix    = ".myshopify.com"
)

// TenantID names one shop. It is the shop domain, lower-cased.
type TenantID string

func (t TenantID) String() string {
	return string(t)
}

// NormalizeTenantID accepts "merchant", "merchant.myshopify.com" or a full
// shop URL and returns the canonical shop domain.
func NormalizeTenantID(value string) (TenantID, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "", fmt.Errorf("core: shop is required")
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("core: parse shop: %w", err)
		}
		trimmed = strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || strings.ContainsAny(trimmed, "/?#@ ") {
		return "", fmt.Errorf("core: invalid shop %q", value)
	}
	if !strings.Contains(trimmed, ".") {
		trimmed += shopDomainSuffix
	}
	if !strings.HasSuffix(trimmed, shopDomainSuffix) {
		return "", fmt.Errorf("core: shop must end with %q", shopDomainSuffix)
	}
	return TenantID(trimmed), nil
}

// CredentialRecord is the access credential stored for one tenant. Scope is
// optional; an empty string means the platform did not report one.
type CredentialRecord struct {
	AccessToken string    `json:"accessToken"`
	Scope       string    `json:"scope,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

func (r CredentialRecord) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

type StepName string

const (
	StepProductCreate             StepName = "productCreate"
	StepProductVariantsBulkUpdate StepName = "productVariantsBulkUpdate"
	StepInventoryAdjustQuantities StepName = "inventoryAdjustQuantities"

	// StepProductUpdate is a standalone call outside the saga.
	StepProductUpdate StepName = "productUpdate"
)

const (
	StepsCompletedDone              = "done"
	StepsCompletedWithoutInventory  = "done_without_inventory_adjust"
	StepsCompletedProductOnly       = "product_created"
	InventoryAdjustReason           = "correction"
	InventoryQuantityNameAvailable  = "available"
	DefaultInventoryReferencePrefix = "logistics://provisioner/saga/"
)

type SagaState string

const (
	SagaStateStart             SagaState = "start"
	SagaStateProductCreated    SagaState = "product_created"
	SagaStateVariantPriced     SagaState = "variant_priced"
	SagaStateInventoryAdjusted SagaState = "inventory_adjusted"
	SagaStateInventorySkipped  SagaState = "inventory_skipped"
	SagaStateDone              SagaState = "done"
	SagaStateFailed            SagaState = "failed"
)

// ProvisionRequest is built per invocation and never persisted.
//
// CurrencyCode is not sent to Shopify: variant prices are always in the shop
// currency. It is echoed on SagaResult and stored on the run record so a
// caller can detect a mismatch with the shop settings.
type ProvisionRequest struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
	LocationID   string `json:"locationId"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// Normalized trims fields and fills the currency default.
func (r ProvisionRequest) Normalized() ProvisionRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Price = strings.TrimSpace(r.Price)
	r.SKU = strings.TrimSpace(r.SKU)
	r.LocationID = strings.TrimSpace(r.LocationID)
	r.CurrencyCode = strings.ToUpper(strings.TrimSpace(r.CurrencyCode))
	if r.CurrencyCode == "" {
		r.CurrencyCode = DefaultCurrencyCode
	}
	return r
}

func (r ProvisionRequest) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Title) == "" {
		fields["title"] = "title is required"
	}
	if price := strings.TrimSpace(r.Price); price == "" {
		fields["price"] = "price is required"
	} else if !decimalPrice.MatchString(price) {
		fields["price"] = "price must be a non-negative decimal string"
	}
	if strings.TrimSpace(r.SKU) == "" {
		fields["sku"] = "sku is required"
	}
	if r.Quantity < 0 {
		fields["quantity"] = "quantity must be >= 0"
	}
	if strings.TrimSpace(r.LocationID) == "" && r.Quantity != 0 {
		fields["locationId"] = "locationId is required when quantity is set"
	}
	if len(fields) == 0 {
		return nil
	}
	return NewBadInputError("core: invalid provision request", fields)
}

// UserError is a platform validation error, kept verbatim.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

func (e UserError) String() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return strings.Join(e.Field, ".") + ": " + e.Message
}

type PartialIDs struct {
	ProductID       string `json:"productId,omitempty"`
	VariantID       string `json:"variantId,omitempty"`
	InventoryItemID string `json:"inventoryItemId,omitempty"`
}

func (p PartialIDs) Empty() bool {
	return p.ProductID == "" && p.VariantID == "" && p.InventoryItemID == ""
}

// SagaResult is either a success (OK) or a failure naming the step that
// failed. PartialIDs on failure carry whatever the platform already created;
// nothing is cleaned up.
type SagaResult struct {
	OK              bool        `json:"ok"`
	RunID           string      `json:"runId,omitempty"`
	ProductID       string      `json:"productId,omitempty"`
	VariantID       string      `json:"variantId,omitempty"`
	InventoryItemID string      `json:"inventoryItemId,omitempty"`
	CurrencyCode    string      `json:"currencyCode,omitempty"`
	StepsCompleted  string      `json:"stepsCompleted,omitempty"`
	FailedStep      StepName    `json:"failedStep,omitempty"`
	UserErrors      []UserError `json:"userErrors,omitempty"`
	Message         string      `json:"message,omitempty"`
	PartialIDs      PartialIDs  `json:"partialIds"`
	Transitions     []SagaState `json:"transitions,omitempty"`
	Err             error       `json:"-"`
}

func (r SagaResult) State() SagaState {
	if len(r.Transitions) == 0 {
		return SagaStateStart
	}
	return r.Transitions[len(r.Transitions)-1]
}

// Admin API payload shapes used by the saga.

type ProductCreateInput struct {
	Title           string `json:"title"`
	Status          string `json:"status,omitempty"`
	Vendor          string `json:"vendor,omitempty"`
	ProductType     string `json:"productType,omitempty"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
}

// ProductUpdateInput edits basic product fields. Empty fields are left as
// they are on the platform.
type ProductUpdateInput struct {
	ID              string `json:"id"`
	Title           string `json:"title,omitempty"`
	Status          string `json:"status,omitempty"`
	Vendor          string `json:"vendor,omitempty"`
	ProductType     string `json:"productType,omitempty"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
}

type ProductUpdatePayload struct {
	ProductID  string
	Title      string
	UserErrors []UserError
}

type ProductCreatePayload struct {
	ProductID       string
	Title           string
	VariantID       string
	InventoryItemID string
	UserErrors      []UserError
}

type VariantPriceInput struct {
	ID    string
	Price string
	// CurrencyCode is informational; the bulk input carries no currency.
	CurrencyCode string
	SKU          string
}

type VariantsBulkUpdatePayload struct {
	VariantIDs []string
	UserErrors []UserError
}

type InventoryAdjustInput struct {
	InventoryItemID      string
	LocationID           string
	Delta                int
	Reason               string
	Name                 string
	ReferenceDocumentURI string
}

type InventoryAdjustPayload struct {
	AdjustmentGroupID string
	UserErrors        []UserError
}

type InstallState string

const (
	InstallStateUnauthorized    InstallState = "unauthorized"
	InstallStatePendingCallback InstallState = "pending_callback"
	InstallStateInstalled       InstallState = "installed"
)

// ProvisioningRun is the stored outcome of one saga run.
type ProvisioningRun struct {
	RunID     string           `json:"runId"`
	TenantID  TenantID         `json:"shop"`
	Request   ProvisionRequest `json:"request"`
	Result    SagaResult       `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
}

type RunFilter struct {
	TenantID   TenantID
	FailedOnly bool
	Limit      int
}
