package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore maps a tenant to its stored credential. Get reports a
// missing, corrupt or undecryptable credential as absent (false, nil).
type CredentialStore interface {
	Get(ctx context.Context, tenant TenantID) (CredentialRecord, bool, error)
	Put(ctx context.Context, tenant TenantID, record CredentialRecord) error
	Delete(ctx context.Context, tenant TenantID) error
	List(ctx context.Context) ([]TenantID, error)
}

// AdminClient is the platform Admin API surface used by the saga. Methods
// return the payload, userErrors included, and an error only for transport
// or decoding failures.
type AdminClient interface {
	ProductCreate(ctx context.Context, input ProductCreateInput) (ProductCreatePayload, error)
	ProductVariantsBulkUpdate(ctx context.Context, productID string, variants []VariantPriceInput) (VariantsBulkUpdatePayload, error)
	InventoryAdjustQuantities(ctx context.Context, input InventoryAdjustInput) (InventoryAdjustPayload, error)
}

// ClientFactory builds an AdminClient bound to one tenant's stored
// credential. A tenant without a credential yields ErrCredentialNotFound.
type ClientFactory interface {
	Create(ctx context.Context, tenant TenantID) (AdminClient, error)
}

// TokenExchanger trades an authorization code for a credential.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, tenant TenantID, code string) (CredentialRecord, error)
}

// RunRecorder receives saga results after each run.
type RunRecorder interface {
	RecordRun(ctx context.Context, tenant TenantID, req ProvisionRequest, result SagaResult) error
}

type RunReader interface {
	ListRuns(ctx context.Context, filter RunFilter) ([]ProvisioningRun, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
