package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
)

func TestProvider_InstallURLUsesShopHostAndScopes(t *testing.T) {
	provider, err := New(Config{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	installURL, err := provider.InstallURL("demo.myshopify.com", "https://app.example/auth/callback", "state_1")
	if err != nil {
		t.Fatalf("install url: %v", err)
	}
	parsed, err := url.Parse(installURL)
	if err != nil {
		t.Fatalf("parse install url: %v", err)
	}
	if parsed.Host != "demo.myshopify.com" || parsed.Path != "/admin/oauth/authorize" {
		t.Fatalf("unexpected authorize url %q", installURL)
	}
	if got := parsed.Query().Get("scope"); got != "read_inventory,read_products,write_inventory,write_products" {
		t.Fatalf("unexpected scope %q", got)
	}
	if parsed.Query().Get("state") != "state_1" {
		t.Fatalf("expected state in authorize url")
	}
}

func TestProvider_ExchangeCodeBuildsCredential(t *testing.T) {
	var body map[string]string
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"shpat_new","scope":"write_products,read_products"}`))
	}))
	defer server.Close()

	installedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	provider, err := New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		HTTPClient:   server.Client(),
		ShopURL:      func(core.TenantID) string { return server.URL },
		Now:          func() time.Time { return installedAt },
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	record, err := provider.ExchangeCode(context.Background(), "demo.myshopify.com", "code_1")
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if path != "/admin/oauth/access_token" {
		t.Fatalf("unexpected token path %q", path)
	}
	if body["client_id"] != "client" || body["client_secret"] != "secret" || body["code"] != "code_1" {
		t.Fatalf("unexpected exchange body %#v", body)
	}
	if record.AccessToken != "shpat_new" || record.Scope != "read_products,write_products" || !record.InstalledAt.Equal(installedAt) {
		t.Fatalf("unexpected credential %#v", record)
	}
}
