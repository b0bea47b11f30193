package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db   *bun.DB
	opts []CredentialStoreOption

	credentialStore      *CredentialStore
	provisioningRunStore *ProvisioningRunStore
	webhookDeliveryStore *WebhookDeliveryStore
	throttleStateStore   *ThrottleStateStore
}

func NewRepositoryFactory(opts ...CredentialStoreOption) *RepositoryFactory {
	return &RepositoryFactory{opts: opts}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...CredentialStoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...CredentialStoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build resolves a *bun.DB from a persistence client or a bun db and wires
// the stores once.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.credentialStore != nil && f.provisioningRunStore != nil &&
		f.webhookDeliveryStore != nil && f.throttleStateStore != nil {
		return nil
	}
	credentialStore, err := NewCredentialStore(f.db, f.opts...)
	if err != nil {
		return err
	}
	runStore, err := NewProvisioningRunStore(f.db)
	if err != nil {
		return err
	}
	deliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	throttleStore, err := NewThrottleStateStore(f.db)
	if err != nil {
		return err
	}
	f.credentialStore = credentialStore
	f.provisioningRunStore = runStore
	f.webhookDeliveryStore = deliveryStore
	f.throttleStateStore = throttleStore
	return nil
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil || f.credentialStore == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) ProvisioningRunStore() *ProvisioningRunStore {
	if f == nil {
		return nil
	}
	return f.provisioningRunStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) ThrottleStateStore() *ThrottleStateStore {
	if f == nil {
		return nil
	}
	return f.throttleStateStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
