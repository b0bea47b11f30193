package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-shopify-provisioner/core"
)

const ErrorCodeThrottled = "PROVISION_THROTTLED"

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Observation is what one Admin API response says about the shop's call
// budget.
type Observation struct {
	StatusCode int
	Limit      int
	Remaining  int
	// HasBudget is set when Limit and Remaining were reported.
	HasBudget  bool
	RetryAfter *time.Duration
}

type State struct {
	Tenant         core.TenantID
	Limit          int
	Remaining      int
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, tenant core.TenantID) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Tenant     core.TenantID
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: shop %q throttled for %s", e.Tenant.String(), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{"shop": e.Tenant.String()}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorCodeThrottled).
		WithMetadata(metadata)
}

// AdaptivePolicy refuses calls for a shop while its last response said the
// budget is spent. Nothing is retried; the caller sees ThrottledError.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, tenant core.TenantID) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, tenant)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}
	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Tenant: tenant, RetryAfter: until.Sub(now)}
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, tenant core.TenantID, obs Observation) error {
	if p == nil || p.Store == nil {
		return nil
	}
	now := p.now()
	state, err := p.Store.Get(ctx, tenant)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Tenant: tenant}
	}

	state.LastStatus = obs.StatusCode
	state.UpdatedAt = now
	if obs.HasBudget {
		state.Limit = obs.Limit
		state.Remaining = obs.Remaining
	}
	state.RetryAfter = nil
	if obs.RetryAfter != nil && *obs.RetryAfter > 0 {
		retryAfter := *obs.RetryAfter
		state.RetryAfter = &retryAfter
	}

	if isThrottled(obs) {
		state.Attempts++
		delay := p.nextBackoff(state.Attempts)
		if state.RetryAfter != nil {
			delay = *state.RetryAfter
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return delay
}

// isThrottled treats 429 and a spent budget as throttling. 5xx is a server
// fault, not a budget signal.
func isThrottled(obs Observation) bool {
	if obs.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if obs.StatusCode >= http.StatusInternalServerError {
		return false
	}
	return obs.HasBudget && obs.Limit > 0 && obs.Remaining <= 0
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[core.TenantID]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[core.TenantID]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, tenant core.TenantID) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeTenant(tenant)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Tenant = normalizeTenant(state.Tenant)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Tenant] = state
	return nil
}

func normalizeTenant(tenant core.TenantID) core.TenantID {
	return core.TenantID(strings.ToLower(strings.TrimSpace(tenant.String())))
}
