package install

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
)

// Authorizer builds the consent URL the merchant is redirected to.
type Authorizer interface {
	InstallURL(tenant core.TenantID, redirectURI, state string) (string, error)
}

// CallbackVerifier checks the platform signature on a callback query.
type CallbackVerifier interface {
	Verify(query url.Values) error
}

type Config struct {
	RedirectURI  string
	RequireState bool
	RequireHMAC  bool
}

type Option func(*Flow)

func WithStateStore(states core.OAuthStateStore) Option {
	return func(f *Flow) {
		if states != nil {
			f.states = states
		}
	}
}

func WithCallbackVerifier(verifier CallbackVerifier) Option {
	return func(f *Flow) {
		f.verifier = verifier
	}
}

func WithObserver(observer *core.Observer) Option {
	return func(f *Flow) {
		if observer != nil {
			f.observer = observer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// Flow moves a tenant from Unauthorized to Installed. Begin issues a state
// and the consent URL; Complete exchanges the callback code and stores the
// credential. Nothing is stored unless every check and the exchange pass.
type Flow struct {
	cfg        Config
	authorizer Authorizer
	exchanger  core.TokenExchanger
	store      core.CredentialStore
	states     core.OAuthStateStore
	verifier   CallbackVerifier
	observer   *core.Observer
	now        func() time.Time
}

type BeginResult struct {
	Tenant      core.TenantID
	RedirectURL string
	State       string
}

type CallbackRequest struct {
	Shop  string
	Code  string
	State string
	HMAC  string
	Query url.Values
}

type CompleteResult struct {
	Tenant      core.TenantID
	Scope       string
	InstalledAt time.Time
}

func NewFlow(
	cfg Config,
	authorizer Authorizer,
	exchanger core.TokenExchanger,
	store core.CredentialStore,
	opts ...Option,
) (*Flow, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("install: authorizer is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("install: token exchanger is required")
	}
	if store == nil {
		return nil, fmt.Errorf("install: credential store is required")
	}
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)

	flow := &Flow{
		cfg:        cfg,
		authorizer: authorizer,
		exchanger:  exchanger,
		store:      store,
		states:     core.NewMemoryOAuthStateStore(core.DefaultOAuthStateTTL),
		observer:   core.NewObserver("install", nil, nil),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(flow)
		}
	}
	if flow.cfg.RequireHMAC && flow.verifier == nil {
		return nil, fmt.Errorf("install: hmac verification required but no verifier configured")
	}
	return flow, nil
}

func (f *Flow) Begin(ctx context.Context, shop string) (BeginResult, error) {
	startedAt := time.Now()
	tenant, err := core.NormalizeTenantID(shop)
	if err != nil {
		err = invalidShopError(err)
		f.observer.Observe(ctx, startedAt, "begin", err, map[string]any{"shop": shop})
		return BeginResult{}, err
	}
	fields := map[string]any{"shop": tenant.String()}

	state, err := core.GenerateOAuthState()
	if err != nil {
		f.observer.Observe(ctx, startedAt, "begin", err, fields)
		return BeginResult{}, err
	}
	redirectURL, err := f.authorizer.InstallURL(tenant, f.cfg.RedirectURI, state)
	if err != nil {
		f.observer.Observe(ctx, startedAt, "begin", err, fields)
		return BeginResult{}, err
	}
	if err := f.states.Save(ctx, core.OAuthStateRecord{
		State:       state,
		TenantID:    tenant,
		RedirectURI: f.cfg.RedirectURI,
		CreatedAt:   f.now(),
	}); err != nil {
		err = core.NewStorageError(err, "install: save oauth state")
		f.observer.Observe(ctx, startedAt, "begin", err, fields)
		return BeginResult{}, err
	}

	f.observer.Observe(ctx, startedAt, "begin", nil, fields)
	return BeginResult{Tenant: tenant, RedirectURL: redirectURL, State: state}, nil
}

func (f *Flow) Complete(ctx context.Context, req CallbackRequest) (CompleteResult, error) {
	startedAt := time.Now()
	fields := map[string]any{"shop": req.Shop}
	result, err := f.complete(ctx, req, fields)
	f.observer.Observe(ctx, startedAt, "complete", err, fields)
	return result, err
}

func (f *Flow) complete(ctx context.Context, req CallbackRequest, fields map[string]any) (CompleteResult, error) {
	if strings.TrimSpace(req.Shop) == "" || strings.TrimSpace(req.Code) == "" {
		return CompleteResult{}, missingCodeError()
	}
	tenant, err := core.NormalizeTenantID(req.Shop)
	if err != nil {
		return CompleteResult{}, invalidShopError(err)
	}
	fields["shop"] = tenant.String()

	if err := f.verifySignature(req); err != nil {
		return CompleteResult{}, err
	}
	if err := f.consumeState(ctx, tenant, req.State); err != nil {
		return CompleteResult{}, err
	}

	record, err := f.exchanger.ExchangeCode(ctx, tenant, strings.TrimSpace(req.Code))
	if err != nil {
		return CompleteResult{}, core.NewInstallFailedError(err)
	}
	if err := record.Validate(); err != nil {
		return CompleteResult{}, core.NewInstallFailedError(err)
	}
	if record.InstalledAt.IsZero() {
		record.InstalledAt = f.now()
	}
	if err := f.store.Put(ctx, tenant, record); err != nil {
		return CompleteResult{}, err
	}
	fields["scope"] = record.Scope

	return CompleteResult{
		Tenant:      tenant,
		Scope:       record.Scope,
		InstalledAt: record.InstalledAt,
	}, nil
}

func (f *Flow) verifySignature(req CallbackRequest) error {
	if f.verifier == nil {
		return nil
	}
	if strings.TrimSpace(req.HMAC) == "" && !f.cfg.RequireHMAC {
		return nil
	}
	query := req.Query
	if query == nil {
		query = url.Values{}
		query.Set("shop", req.Shop)
		query.Set("code", req.Code)
		if req.State != "" {
			query.Set("state", req.State)
		}
		if req.HMAC != "" {
			query.Set("hmac", req.HMAC)
		}
	}
	if err := f.verifier.Verify(query); err != nil {
		return core.NewOAuthInvalidError("callback signature rejected: " + err.Error())
	}
	return nil
}

// consumeState spends the nonce issued by Begin. An unknown state only
// fails the callback when states are required; a state issued for another
// shop always does.
func (f *Flow) consumeState(ctx context.Context, tenant core.TenantID, state string) error {
	state = strings.TrimSpace(state)
	if state == "" {
		if f.cfg.RequireState {
			return core.NewOAuthInvalidError("oauth state is required")
		}
		return nil
	}
	record, err := f.states.Consume(ctx, state)
	if err != nil {
		if f.cfg.RequireState {
			return core.NewOAuthInvalidError("oauth state rejected: " + err.Error())
		}
		return nil
	}
	if record.TenantID != tenant {
		return core.NewOAuthInvalidError(ErrStateMismatch.Error())
	}
	return nil
}

// Status reports Installed when a credential exists, PendingCallback when a
// live state was issued for the shop, and Unauthorized otherwise.
func (f *Flow) Status(ctx context.Context, shop string) (core.InstallState, error) {
	tenant, err := core.NormalizeTenantID(shop)
	if err != nil {
		return core.InstallStateUnauthorized, invalidShopError(err)
	}
	_, ok, err := f.store.Get(ctx, tenant)
	if err != nil {
		return core.InstallStateUnauthorized, err
	}
	if ok {
		return core.InstallStateInstalled, nil
	}
	pending, err := f.states.Pending(ctx, tenant)
	if err != nil {
		return core.InstallStateUnauthorized, err
	}
	if pending {
		return core.InstallStatePendingCallback, nil
	}
	return core.InstallStateUnauthorized, nil
}
