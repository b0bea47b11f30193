package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/install"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
)

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var shop any
	if h.settings.ShopName != "" {
		shop = h.settings.ShopName
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"shop":    shop,
		"tenants": len(tenants),
	})
}

func (h *handlers) beginInstall(w http.ResponseWriter, r *http.Request) {
	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	if shop == "" {
		writeText(w, http.StatusBadRequest, `Missing "shop" query parameter`)
		return
	}
	result, err := h.installer.Begin(r.Context(), shop)
	if err != nil {
		status, body := errorBody(err)
		writeText(w, status, body["error"].(string))
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *handlers) completeInstall(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.installer.Complete(r.Context(), install.CallbackRequest{
		Shop:  query.Get("shop"),
		Code:  query.Get("code"),
		State: query.Get("state"),
		HMAC:  query.Get("hmac"),
		Query: query,
	})
	if err != nil {
		status, body := errorBody(err)
		writeText(w, status, body["error"].(string))
		return
	}
	writeText(w, http.StatusOK, "App installed for "+result.Tenant.String()+". You can close this tab.")
}

func (h *handlers) installStatus(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	state, err := h.installer.Status(r.Context(), shop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": shop, "state": state})
}

type createProductBody struct {
	Shop  string `json:"shop"`
	SKU   string `json:"sku"`
	Title string `json:"title"`
}

func (h *handlers) createProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Shop) == "" || strings.TrimSpace(body.SKU) == "" || strings.TrimSpace(body.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "shop, sku, title are required in body",
			"textCode": core.ErrorCodeBadInput,
		})
		return
	}

	result, err := h.provisioner.CreateProduct(r.Context(), core.TenantID(body.Shop), core.ProvisionRequest{
		Title: body.Title,
		SKU:   body.SKU,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.OK {
		status, payload := failureBody(body.Shop, "Failed to create product", result)
		writeJSON(w, status, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"shop":                body.Shop,
		"sku":                 body.SKU,
		"runId":               result.RunID,
		"createdProductId":    result.ProductID,
		"createdProductTitle": strings.TrimSpace(body.Title),
		"stepsCompleted":      result.StepsCompleted,
	})
}

type provisionBody struct {
	Shop         string `json:"shop"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	SKU          string `json:"sku"`
	Quantity     *int   `json:"quantity"`
	LocationID   string `json:"locationId"`
	CurrencyCode string `json:"currencyCode"`
}

func (h *handlers) provisionProduct(w http.ResponseWriter, r *http.Request) {
	var body provisionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Shop) == "" || strings.TrimSpace(body.Title) == "" ||
		strings.TrimSpace(body.Price) == "" || strings.TrimSpace(body.SKU) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "Missing required fields",
			"required": []string{"shop", "title", "price", "sku", "quantity"},
			"textCode": core.ErrorCodeBadInput,
		})
		return
	}
	locationID := strings.TrimSpace(body.LocationID)
	if locationID == "" {
		locationID = h.settings.DefaultLocationID
	}
	if locationID == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    "DEFAULT_LOCATION_ID is not configured and no locationId was given",
			"textCode": core.ErrorCodeInternal,
		})
		return
	}
	quantity := 0
	if body.Quantity != nil {
		quantity = *body.Quantity
	}
	currency := strings.TrimSpace(body.CurrencyCode)
	if currency == "" {
		currency = h.settings.DefaultCurrency
	}

	result, err := h.provisioner.Provision(r.Context(), core.TenantID(body.Shop), core.ProvisionRequest{
		Title:        body.Title,
		Price:        body.Price,
		SKU:          body.SKU,
		Quantity:     quantity,
		LocationID:   locationID,
		CurrencyCode: currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.OK {
		status, payload := failureBody(body.Shop, "Failed to create product with variant", result)
		writeJSON(w, status, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"shop":            body.Shop,
		"runId":           result.RunID,
		"productId":       result.ProductID,
		"variantId":       result.VariantID,
		"inventoryItemId": result.InventoryItemID,
		"stepsCompleted":  result.StepsCompleted,
	})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := core.RunFilter{}
	if shop := strings.TrimSpace(query.Get("shop")); shop != "" {
		tenant, err := core.NormalizeTenantID(shop)
		if err != nil {
			writeError(w, core.NewBadInputError("invalid shop", map[string]string{"shop": err.Error()}))
			return
		}
		filter.TenantID = tenant
	}
	if raw := query.Get("failedOnly"); raw != "" {
		failedOnly, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, core.NewBadInputError("invalid failedOnly", map[string]string{"failedOnly": "must be a boolean"}))
			return
		}
		filter.FailedOnly = failedOnly
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, core.NewBadInputError("invalid limit", map[string]string{"limit": "must be a non-negative integer"}))
			return
		}
		filter.Limit = limit
	}
	runs, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []core.ProvisioningRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// receiveWebhook needs the raw body: the signature covers the exact bytes.
func (h *handlers) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, core.NewBadInputError("webhook body unreadable", map[string]string{"body": err.Error()}))
		return
	}
	result, err := h.webhooks.Process(r.Context(), webhooks.DeliveryFromRequest(r.Header, body))
	if err != nil {
		status, payload := errorBody(err)
		if errors.Is(err, core.ErrOAuthInvalid) {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"shop":    result.Tenant,
		"topic":   result.Topic,
		"deduped": result.Deduped,
		"ignored": result.Ignored,
	})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewBadInputError("request body is required", nil)
		}
		return core.NewBadInputError("request body is not valid JSON", map[string]string{"body": err.Error()})
	}
	return nil
}
