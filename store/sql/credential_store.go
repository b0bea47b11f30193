package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	tokenFormatPlain  = "plain"
	tokenFormatSealed = "sealed"
)

// CredentialStore keeps one row per shop in shop_credentials. Tokens are
// sealed with the configured SecretProvider; without one they are stored as
// plain bytes.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*shopCredentialRecord]
	secrets core.SecretProvider
	logger  core.Logger
}

type CredentialStoreOption func(*CredentialStore)

func WithSecretProvider(secrets core.SecretProvider) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func WithLogger(logger core.Logger) CredentialStoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCredentialStore(db *bun.DB, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shopCredentialRecord](db, shopCredentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:     db,
		repo:   repo,
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Get(ctx context.Context, tenant core.TenantID) (core.CredentialRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shop", "=", strings.TrimSpace(tenant.String())),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, false, core.NewStorageError(err, "sqlstore: load credential")
	}
	if len(records) == 0 {
		return core.CredentialRecord{}, false, nil
	}
	record, err := s.toDomain(ctx, records[0])
	if err != nil {
		s.logger.WithContext(ctx).Warn("stored credential unreadable, treating as absent",
			"shop", tenant.String(),
			"error", err.Error(),
		)
		return core.CredentialRecord{}, false, nil
	}
	return record, true, nil
}

func (s *CredentialStore) Put(ctx context.Context, tenant core.TenantID, in core.CredentialRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	shop := strings.TrimSpace(tenant.String())
	if shop == "" {
		return fmt.Errorf("sqlstore: shop is required")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	token, format, err := s.seal(ctx, in.AccessToken)
	if err != nil {
		return core.NewStorageError(err, "sqlstore: seal access token")
	}

	now := time.Now().UTC()
	installedAt := in.InstalledAt.UTC()
	if in.InstalledAt.IsZero() {
		installedAt = now
	}
	record := &shopCredentialRecord{
		ID:             uuid.NewString(),
		Shop:           shop,
		EncryptedToken: token,
		TokenFormat:    format,
		Scope:          strings.TrimSpace(in.Scope),
		InstalledAt:    installedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// Concurrent first installs for one shop resolve as last write wins on
	// the unique shop index; the row keeps its original id and created_at.
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (shop) DO UPDATE").
		Set("encrypted_token = EXCLUDED.encrypted_token").
		Set("token_format = EXCLUDED.token_format").
		Set("scope = EXCLUDED.scope").
		Set("installed_at = EXCLUDED.installed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.NewStorageError(err, "sqlstore: save credential")
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, tenant core.TenantID) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*shopCredentialRecord)(nil)).
		Where("shop = ?", strings.TrimSpace(tenant.String())).
		Exec(ctx)
	if err != nil {
		return core.NewStorageError(err, "sqlstore: delete credential")
	}
	return nil
}

func (s *CredentialStore) List(ctx context.Context) ([]core.TenantID, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("shop ASC"))
	if err != nil {
		return nil, core.NewStorageError(err, "sqlstore: list credentials")
	}
	out := make([]core.TenantID, 0, len(records))
	for _, record := range records {
		out = append(out, core.TenantID(record.Shop))
	}
	return out, nil
}

func (s *CredentialStore) seal(ctx context.Context, token string) ([]byte, string, error) {
	if s.secrets == nil {
		return []byte(token), tokenFormatPlain, nil
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(token))
	if err != nil {
		return nil, "", err
	}
	return sealed, tokenFormatSealed, nil
}

func (s *CredentialStore) toDomain(ctx context.Context, record *shopCredentialRecord) (core.CredentialRecord, error) {
	if record == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: nil credential record")
	}
	var token string
	switch record.TokenFormat {
	case tokenFormatPlain:
		token = string(record.EncryptedToken)
	case tokenFormatSealed:
		if s.secrets == nil {
			return core.CredentialRecord{}, fmt.Errorf("sqlstore: sealed token without secret provider")
		}
		plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedToken)
		if err != nil {
			return core.CredentialRecord{}, err
		}
		token = string(plaintext)
	default:
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: unknown token format %q", record.TokenFormat)
	}
	out := core.CredentialRecord{
		AccessToken: token,
		Scope:       record.Scope,
		InstalledAt: record.InstalledAt.UTC(),
	}
	if err := out.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	return out, nil
}
