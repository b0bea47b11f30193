package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const DefaultOAuthStateTTL = 15 * time.Minute

type OAuthStateRecord struct {
	State       string    `json:"state"`
	TenantID    TenantID  `json:"tenantId"`
	Scopes      []string  `json:"scopes,omitempty"`
	RedirectURI string    `json:"redirectUri"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// OAuthStateStore keeps the nonce issued when an install begins. Consume is
// single use.
type OAuthStateStore interface {
	Save(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string) (OAuthStateRecord, error)
	Pending(ctx context.Context, tenant TenantID) (bool, error)
}

type MemoryOAuthStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]OAuthStateRecord
}

func NewMemoryOAuthStateStore(ttl time.Duration) *MemoryOAuthStateStore {
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	return &MemoryOAuthStateStore{
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]OAuthStateRecord{},
	}
}

func (s *MemoryOAuthStateStore) Save(_ context.Context, record OAuthStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: oauth state is required")
	}

	record = PrepareOAuthStateRecord(record, s.now(), s.ttl)

	s.mu.Lock()
	s.entries[state] = cloneOAuthStateRecord(record)
	s.mu.Unlock()

	return nil
}

func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string) (OAuthStateRecord, error) {
	if s == nil {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state is required")
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state not found")
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state expired")
	}

	return cloneOAuthStateRecord(record), nil
}

func (s *MemoryOAuthStateStore) Pending(_ context.Context, tenant TenantID) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: oauth state store is not configured")
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.entries {
		if record.TenantID != tenant {
			continue
		}
		if record.ExpiresAt.IsZero() || !now.After(record.ExpiresAt) {
			return true, nil
		}
	}
	return false, nil
}

// PrepareOAuthStateRecord fills CreatedAt and ExpiresAt when unset.
func PrepareOAuthStateRecord(record OAuthStateRecord, now time.Time, ttl time.Duration) OAuthStateRecord {
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(ttl)
	}
	return record
}

func GenerateOAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func cloneOAuthStateRecord(record OAuthStateRecord) OAuthStateRecord {
	cloned := record
	cloned.Scopes = append([]string(nil), record.Scopes...)
	return cloned
}
