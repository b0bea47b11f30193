package install

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/credentials"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
)

type fakeAuthorizer struct {
	err error
}

func (a fakeAuthorizer) InstallURL(tenant core.TenantID, redirectURI, state string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "https://" + tenant.String() + "/admin/oauth/authorize?state=" + url.QueryEscape(state) +
		"&redirect_uri=" + url.QueryEscape(redirectURI), nil
}

type fakeExchanger struct {
	record core.CredentialRecord
	err    error
	calls  int
	codes  []string
}

func (e *fakeExchanger) ExchangeCode(_ context.Context, _ core.TenantID, code string) (core.CredentialRecord, error) {
	e.calls++
	e.codes = append(e.codes, code)
	if e.err != nil {
		return core.CredentialRecord{}, e.err
	}
	return e.record, nil
}

func newTestFlow(t *testing.T, cfg Config, exchanger *fakeExchanger, store core.CredentialStore, opts ...Option) *Flow {
	t.Helper()
	flow, err := NewFlow(cfg, fakeAuthorizer{}, exchanger, store, opts...)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return flow
}

func TestFlow_BeginIssuesStateAndMarksPending(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	flow := newTestFlow(t, Config{RedirectURI: "https://app.example.com/auth/callback"}, &fakeExchanger{}, store)

	result, err := flow.Begin(ctx, "demo-shop")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if result.Tenant != "demo-shop.myshopify.com" {
		t.Fatalf("expected normalized tenant, got %q", result.Tenant)
	}
	if result.State == "" || !strings.Contains(result.RedirectURL, url.QueryEscape(result.State)) {
		t.Fatalf("expected redirect to carry state, got %q", result.RedirectURL)
	}

	state, err := flow.Status(ctx, "demo-shop.myshopify.com")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state != core.InstallStatePendingCallback {
		t.Fatalf("expected pending_callback, got %q", state)
	}
}

func TestFlow_BeginRejectsInvalidShop(t *testing.T) {
	flow := newTestFlow(t, Config{}, &fakeExchanger{}, credentials.NewMemoryStore())
	_, err := flow.Begin(context.Background(), "shop.example.com")
	if err == nil {
		t.Fatalf("expected invalid shop error")
	}
	if core.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", core.HTTPStatus(err))
	}
	if !errors.Is(err, ErrInvalidShop) {
		t.Fatalf("expected ErrInvalidShop, got %v", err)
	}
}

func TestFlow_CompleteStoresCredential(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	exchanger := &fakeExchanger{record: core.CredentialRecord{AccessToken: "shpat_1", Scope: "write_products"}}
	flow := newTestFlow(t, Config{RequireState: true}, exchanger, store)

	begun, err := flow.Begin(ctx, "demo-shop.myshopify.com")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	result, err := flow.Complete(ctx, CallbackRequest{Shop: "demo-shop.myshopify.com", Code: " code-1 ", State: begun.State})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Scope != "write_products" || result.InstalledAt.IsZero() {
		t.Fatalf("unexpected result %#v", result)
	}
	if len(exchanger.codes) != 1 || exchanger.codes[0] != "code-1" {
		t.Fatalf("expected trimmed code exchanged once, got %#v", exchanger.codes)
	}

	record, ok, err := store.Get(ctx, "demo-shop.myshopify.com")
	if err != nil || !ok {
		t.Fatalf("expected stored credential, ok=%t err=%v", ok, err)
	}
	if record.AccessToken != "shpat_1" {
		t.Fatalf("unexpected token %q", record.AccessToken)
	}
	state, err := flow.Status(ctx, "demo-shop")
	if err != nil || state != core.InstallStateInstalled {
		t.Fatalf("expected installed, got %q err=%v", state, err)
	}
}

func TestFlow_CompleteMissingCodeLeavesTenantUnauthorized(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	exchanger := &fakeExchanger{record: core.CredentialRecord{AccessToken: "shpat_1"}}
	flow := newTestFlow(t, Config{}, exchanger, store)

	for _, req := range []CallbackRequest{
		{Shop: "demo-shop.myshopify.com"},
		{Code: "code-1"},
		{Shop: "demo-shop.myshopify.com", Code: "   "},
	} {
		_, err := flow.Complete(ctx, req)
		if err == nil {
			t.Fatalf("expected error for %#v", req)
		}
		if !errors.Is(err, ErrInstallMissingCode) {
			t.Fatalf("expected ErrInstallMissingCode, got %v", err)
		}
		if core.HTTPStatus(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", core.HTTPStatus(err))
		}
	}
	if exchanger.calls != 0 {
		t.Fatalf("expected no exchange, got %d", exchanger.calls)
	}
	tenants, _ := store.List(ctx)
	if len(tenants) != 0 {
		t.Fatalf("expected no stored credentials, got %#v", tenants)
	}
	state, err := flow.Status(ctx, "demo-shop")
	if err != nil || state != core.InstallStateUnauthorized {
		t.Fatalf("expected unauthorized, got %q err=%v", state, err)
	}
}

func TestFlow_CompleteExchangeFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	exchanger := &fakeExchanger{err: errors.New("token endpoint returned status 401")}
	flow := newTestFlow(t, Config{}, exchanger, store)

	_, err := flow.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "bad"})
	if !errors.Is(err, core.ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if core.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", core.HTTPStatus(err))
	}
	if _, ok, _ := store.Get(ctx, "demo-shop.myshopify.com"); ok {
		t.Fatalf("expected no credential after failed exchange")
	}
}

func TestFlow_CompleteRejectsEmptyToken(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	flow := newTestFlow(t, Config{}, &fakeExchanger{record: core.CredentialRecord{Scope: "x"}}, store)

	if _, err := flow.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "c"}); !errors.Is(err, core.ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if _, ok, _ := store.Get(ctx, "demo-shop.myshopify.com"); ok {
		t.Fatalf("expected no credential")
	}
}

func TestFlow_StateChecks(t *testing.T) {
	ctx := context.Background()
	exchanger := &fakeExchanger{record: core.CredentialRecord{AccessToken: "shpat_1"}}

	strict := newTestFlow(t, Config{RequireState: true}, exchanger, credentials.NewMemoryStore())
	if _, err := strict.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "c"}); !errors.Is(err, core.ErrOAuthInvalid) {
		t.Fatalf("expected missing state rejected, got %v", err)
	}
	if _, err := strict.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "c", State: "unknown"}); !errors.Is(err, core.ErrOAuthInvalid) {
		t.Fatalf("expected unknown state rejected, got %v", err)
	}

	lenient := newTestFlow(t, Config{}, exchanger, credentials.NewMemoryStore())
	if _, err := lenient.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "c", State: "unknown"}); err != nil {
		t.Fatalf("expected unknown state tolerated, got %v", err)
	}

	begun, err := lenient.Begin(ctx, "other-shop")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = lenient.Complete(ctx, CallbackRequest{Shop: "demo-shop", Code: "c", State: begun.State})
	if !errors.Is(err, core.ErrOAuthInvalid) {
		t.Fatalf("expected state for another shop rejected, got %v", err)
	}
}

func TestFlow_StateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	exchanger := &fakeExchanger{record: core.CredentialRecord{AccessToken: "shpat_1"}}
	flow := newTestFlow(t, Config{RequireState: true}, exchanger, credentials.NewMemoryStore())

	begun, err := flow.Begin(ctx, "demo-shop")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	req := CallbackRequest{Shop: "demo-shop", Code: "c", State: begun.State}
	if _, err := flow.Complete(ctx, req); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := flow.Complete(ctx, req); !errors.Is(err, core.ErrOAuthInvalid) {
		t.Fatalf("expected replayed state rejected, got %v", err)
	}
}

func TestFlow_HMACVerification(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier := shopify.CallbackVerifier{Secret: "shh", Now: func() time.Time { return now }}
	store := credentials.NewMemoryStore()
	exchanger := &fakeExchanger{record: core.CredentialRecord{AccessToken: "shpat_1"}}
	flow := newTestFlow(t, Config{RequireHMAC: true}, exchanger, store, WithCallbackVerifier(verifier))

	query := url.Values{}
	query.Set("shop", "demo-shop.myshopify.com")
	query.Set("code", "c")
	query.Set("timestamp", "1772366400")
	query.Set("hmac", shopify.SignCallbackQuery(query, "shh"))

	if _, err := flow.Complete(ctx, CallbackRequest{
		Shop:  "demo-shop.myshopify.com",
		Code:  "c",
		HMAC:  query.Get("hmac"),
		Query: query,
	}); err != nil {
		t.Fatalf("expected signed callback accepted, got %v", err)
	}

	tampered := url.Values{}
	for key, values := range query {
		tampered[key] = append([]string(nil), values...)
	}
	tampered.Set("code", "other")
	_, err := flow.Complete(ctx, CallbackRequest{Shop: "demo-shop.myshopify.com", Code: "other", HMAC: tampered.Get("hmac"), Query: tampered})
	if !errors.Is(err, core.ErrOAuthInvalid) {
		t.Fatalf("expected tampered callback rejected, got %v", err)
	}
	if exchanger.calls != 1 {
		t.Fatalf("expected one exchange, got %d", exchanger.calls)
	}
}

func TestNewFlow_RequiresVerifierWhenHMACRequired(t *testing.T) {
	_, err := NewFlow(Config{RequireHMAC: true}, fakeAuthorizer{}, &fakeExchanger{}, credentials.NewMemoryStore())
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if _, err := NewFlow(Config{}, nil, &fakeExchanger{}, credentials.NewMemoryStore()); err == nil {
		t.Fatalf("expected authorizer required")
	}
}

func TestFlow_BeginPropagatesAuthorizerError(t *testing.T) {
	flow, err := NewFlow(Config{}, fakeAuthorizer{err: errors.New("boom")}, &fakeExchanger{}, credentials.NewMemoryStore())
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	if _, err := flow.Begin(context.Background(), "demo-shop"); err == nil {
		t.Fatalf("expected authorizer error")
	}
	state, _ := flow.Status(context.Background(), "demo-shop")
	if state != core.InstallStateUnauthorized {
		t.Fatalf("expected no pending state after failed begin, got %q", state)
	}
}
