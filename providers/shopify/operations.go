package shopify

import "github.com/goliatone/go-shopify-provisioner/core"

const productCreateMutation = `mutation ProductCreate($input: ProductInput!) {
  productCreate(input: $input) {
    product {
      id
      title
      variants(first: 1) {
        nodes {
          id
          inventoryItem {
            id
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

const productVariantsBulkUpdateMutation = `mutation ProductVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants {
      id
      price
      inventoryItem {
        id
        sku
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const inventoryAdjustQuantitiesMutation = `mutation InventoryAdjustQuantities($input: InventoryAdjustQuantitiesInput!) {
  inventoryAdjustQuantities(input: $input) {
    inventoryAdjustmentGroup {
      id
      reason
      changes {
        name
        delta
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const productUpdateMutation = `mutation ProductUpdateBasic($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    product {
      id
      title
    }
    userErrors {
      field
      message
    }
  }
}`

type userErrorNode struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

func toUserErrors(nodes []userErrorNode) []core.UserError {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]core.UserError, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, core.UserError{
			Field:   append([]string(nil), node.Field...),
			Message: node.Message,
			Code:    node.Code,
		})
	}
	return out
}

type productCreateData struct {
	ProductCreate *struct {
		Product *struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Variants struct {
				Nodes []struct {
					ID            string `json:"id"`
					InventoryItem *struct {
						ID string `json:"id"`
					} `json:"inventoryItem"`
				} `json:"nodes"`
			} `json:"variants"`
		} `json:"product"`
		UserErrors []userErrorNode `json:"userErrors"`
	} `json:"productCreate"`
}

type productUpdateData struct {
	ProductUpdate *struct {
		Product *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"product"`
		UserErrors []userErrorNode `json:"userErrors"`
	} `json:"productUpdate"`
}

type productVariantsBulkUpdateData struct {
	ProductVariantsBulkUpdate *struct {
		ProductVariants []struct {
			ID string `json:"id"`
		} `json:"productVariants"`
		UserErrors []userErrorNode `json:"userErrors"`
	} `json:"productVariantsBulkUpdate"`
}

type inventoryAdjustQuantitiesData struct {
	InventoryAdjustQuantities *struct {
		InventoryAdjustmentGroup *struct {
			ID string `json:"id"`
		} `json:"inventoryAdjustmentGroup"`
		UserErrors []userErrorNode `json:"userErrors"`
	} `json:"inventoryAdjustQuantities"`
}

func productCreateVariables(input core.ProductCreateInput) map[string]any {
	product := map[string]any{"title": input.Title}
	if input.Status != "" {
		product["status"] = input.Status
	}
	if input.Vendor != "" {
		product["vendor"] = input.Vendor
	}
	if input.ProductType != "" {
		product["productType"] = input.ProductType
	}
	if input.DescriptionHTML != "" {
		product["descriptionHtml"] = input.DescriptionHTML
	}
	return map[string]any{"input": product}
}

func productUpdateVariables(input core.ProductUpdateInput) map[string]any {
	product := map[string]any{"id": input.ID}
	for key, value := range map[string]string{
		"title":           input.Title,
		"status":          input.Status,
		"vendor":          input.Vendor,
		"productType":     input.ProductType,
		"descriptionHtml": input.DescriptionHTML,
	} {
		if value != "" {
			product[key] = value
		}
	}
	return map[string]any{"product": product}
}

// The 2024-07 bulk input has no currency field; price is a decimal string in
// the shop currency and the SKU moved under inventoryItem.
func productVariantsBulkUpdateVariables(productID string, variants []core.VariantPriceInput) map[string]any {
	items := make([]map[string]any, 0, len(variants))
	for _, variant := range variants {
		item := map[string]any{
			"id":    variant.ID,
			"price": variant.Price,
		}
		if variant.SKU != "" {
			item["inventoryItem"] = map[string]any{"sku": variant.SKU}
		}
		items = append(items, item)
	}
	return map[string]any{
		"productId": productID,
		"variants":  items,
	}
}

func inventoryAdjustQuantitiesVariables(input core.InventoryAdjustInput) map[string]any {
	payload := map[string]any{
		"reason": input.Reason,
		"name":   input.Name,
		"changes": []map[string]any{{
			"delta":           input.Delta,
			"inventoryItemId": input.InventoryItemID,
			"locationId":      input.LocationID,
		}},
	}
	if input.ReferenceDocumentURI != "" {
		payload["referenceDocumentUri"] = input.ReferenceDocumentURI
	}
	return map[string]any{"input": payload}
}
