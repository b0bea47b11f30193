package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-shopify-provisioner/core"
)

const credentialCacheKeyPrefix = "go-shopify-provisioner::credential::v1"

var errCredentialAbsent = errors.New("credentials: credential absent")

// CachedStore is a read-through cache in front of another CredentialStore.
// Misses are not cached, so a credential written by another process shows up
// on the next read.
type CachedStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedStore(base core.CredentialStore, cacheService repositorycache.CacheService) (*CachedStore, error) {
	if base == nil {
		return nil, fmt.Errorf("credentials: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("credentials: cache service is required")
	}
	return &CachedStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey returns go-shopify-provisioner::credential::v1::<shop>.
func CredentialCacheKey(tenant core.TenantID) string {
	return credentialCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(tenant.String()))
}

func (s *CachedStore) Get(ctx context.Context, tenant core.TenantID) (core.CredentialRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("credentials: cached store is not configured")
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, CredentialCacheKey(tenant), func(ctx context.Context) (core.CredentialRecord, error) {
		fetched, ok, fetchErr := s.base.Get(ctx, tenant)
		if fetchErr != nil {
			return core.CredentialRecord{}, fetchErr
		}
		if !ok {
			return core.CredentialRecord{}, errCredentialAbsent
		}
		return fetched, nil
	})
	if errors.Is(err, errCredentialAbsent) {
		return core.CredentialRecord{}, false, nil
	}
	if err != nil {
		return core.CredentialRecord{}, false, err
	}
	return record, true, nil
}

func (s *CachedStore) Put(ctx context.Context, tenant core.TenantID, record core.CredentialRecord) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("credentials: cached store is not configured")
	}
	if err := s.base.Put(ctx, tenant, record); err != nil {
		return err
	}
	return s.cache.Delete(ctx, CredentialCacheKey(tenant))
}

func (s *CachedStore) Delete(ctx context.Context, tenant core.TenantID) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("credentials: cached store is not configured")
	}
	if err := s.base.Delete(ctx, tenant); err != nil {
		return err
	}
	return s.cache.Delete(ctx, CredentialCacheKey(tenant))
}

func (s *CachedStore) List(ctx context.Context) ([]core.TenantID, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("credentials: cached store is not configured")
	}
	return s.base.List(ctx)
}
