package sqlstore

import (
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/uptrace/bun"
)

type shopCredentialRecord struct {
	bun.BaseModel `bun:"table:shop_credentials,alias:sc"`

	ID             string    `bun:"id,pk"`
	Shop           string    `bun:"shop,notnull"`
	EncryptedToken []byte    `bun:"encrypted_token,notnull"`
	TokenFormat    string    `bun:"token_format,notnull"`
	Scope          string    `bun:"scope,notnull"`
	InstalledAt    time.Time `bun:"installed_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type provisioningRunRecord struct {
	bun.BaseModel `bun:"table:provisioning_runs,alias:pr"`

	ID              string           `bun:"id,pk"`
	Shop            string           `bun:"shop,notnull"`
	Title           string           `bun:"title,notnull"`
	SKU             string           `bun:"sku,notnull"`
	Price           string           `bun:"price,notnull"`
	CurrencyCode    string           `bun:"currency_code,notnull"`
	Quantity        int              `bun:"quantity,notnull"`
	LocationID      string           `bun:"location_id,notnull"`
	OK              bool             `bun:"ok,notnull"`
	StepsCompleted  string           `bun:"steps_completed,notnull"`
	FailedStep      string           `bun:"failed_step,notnull"`
	Message         string           `bun:"message,notnull"`
	UserErrors      []core.UserError `bun:"user_errors,type:jsonb,notnull"`
	Transitions     []core.SagaState `bun:"transitions,type:jsonb,notnull"`
	ProductID       string           `bun:"product_id,notnull"`
	VariantID       string           `bun:"variant_id,notnull"`
	InventoryItemID string           `bun:"inventory_item_id,notnull"`
	CreatedAt       time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID         string     `bun:"id,pk"`
	DeliveryID string     `bun:"delivery_id,notnull"`
	Topic      string     `bun:"topic,notnull"`
	Status     string     `bun:"status,notnull"`
	Attempts   int        `bun:"attempts,notnull"`
	LeaseUntil *time.Time `bun:"lease_until,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type shopThrottleRecord struct {
	bun.BaseModel `bun:"table:shop_throttle_state,alias:st"`

	ID             string     `bun:"id,pk"`
	Shop           string     `bun:"shop,notnull"`
	CallLimit      int        `bun:"call_limit,notnull"`
	Remaining      int        `bun:"remaining,notnull"`
	RetryAfterMS   *int64     `bun:"retry_after_ms,nullzero"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
