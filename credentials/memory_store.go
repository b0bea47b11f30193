package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-shopify-provisioner/core"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[core.TenantID]core.CredentialRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[core.TenantID]core.CredentialRecord{}}
}

func (s *MemoryStore) Get(_ context.Context, tenant core.TenantID) (core.CredentialRecord, bool, error) {
	if s == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("credentials: memory store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[tenant]
	return record, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, tenant core.TenantID, record core.CredentialRecord) error {
	if s == nil {
		return fmt.Errorf("credentials: memory store is not configured")
	}
	if strings.TrimSpace(tenant.String()) == "" {
		return fmt.Errorf("credentials: tenant is required")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[tenant] = record
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, tenant core.TenantID) error {
	if s == nil {
		return fmt.Errorf("credentials: memory store is not configured")
	}
	s.mu.Lock()
	delete(s.records, tenant)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]core.TenantID, error) {
	if s == nil {
		return nil, fmt.Errorf("credentials: memory store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedTenants(s.records), nil
}
