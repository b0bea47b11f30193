package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/adapters/gologger"
	"github.com/goliatone/go-shopify-provisioner/config"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, gologger.FromZap(zap.NewNop()), WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func fileConfig(t *testing.T) config.Config {
	cfg := config.Defaults()
	cfg.Credentials.TokenStorePath = filepath.Join(t.TempDir(), "token_store.json")
	cfg.Shopify.ShopName = "demo"
	cfg.Shopify.AdminToken = "shpat_admin"
	return cfg
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New(context.Background(), config.Defaults(), nil); err == nil {
		t.Fatalf("expected logger error")
	}
}

func TestNew_FileBackendImportsAdminToken(t *testing.T) {
	app := newTestApp(t, fileConfig(t))
	if app.Runs != nil {
		t.Fatalf("expected no run reader for the file backend")
	}
	if app.Service == nil || app.Clients == nil {
		t.Fatalf("expected service and client factory")
	}

	ctx := context.Background()
	tenant, imported, err := app.ImportAdminToken(ctx)
	if err != nil || !imported {
		t.Fatalf("import admin token: imported=%v err=%v", imported, err)
	}
	if tenant != "demo.myshopify.com" {
		t.Fatalf("unexpected tenant %q", tenant)
	}
	record, ok, err := app.Credentials.Get(ctx, tenant)
	if err != nil || !ok || record.AccessToken != "shpat_admin" {
		t.Fatalf("unexpected record %#v ok=%v err=%v", record, ok, err)
	}
}

func TestImportAdminToken_SkipsWithoutToken(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Shopify.AdminToken = ""
	app := newTestApp(t, cfg)
	if _, imported, err := app.ImportAdminToken(context.Background()); err != nil || imported {
		t.Fatalf("expected skip, got imported=%v err=%v", imported, err)
	}
}

func TestNew_SQLiteBackendRecordsRuns(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Credentials.Backend = config.BackendSQLite
	cfg.Credentials.DatabaseURL = fmt.Sprintf("file:bootstrap-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	cfg.Credentials.AppKey = "bootstrap-test-key"
	app := newTestApp(t, cfg)

	if app.Runs == nil {
		t.Fatalf("expected run reader for the sqlite backend")
	}
	ctx := context.Background()
	if _, _, err := app.ImportAdminToken(ctx); err != nil {
		t.Fatalf("import admin token: %v", err)
	}
	tenants, err := app.Credentials.List(ctx)
	if err != nil || len(tenants) != 1 {
		t.Fatalf("unexpected tenants %#v err=%v", tenants, err)
	}

	_, err = app.Service.Provision(ctx, "other.myshopify.com", core.ProvisionRequest{Title: "Tee", Price: "1", SKU: "S"})
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected credential not found error, got %v", err)
	}
}

func TestInstallFlow_RequiresAppCredentials(t *testing.T) {
	app := newTestApp(t, fileConfig(t))
	if _, err := app.InstallFlow(context.Background()); err == nil {
		t.Fatalf("expected install config error")
	}
}

func TestInstallFlow_BeginsWithMemoryState(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Shopify.ClientID = "client-id"
	cfg.Shopify.ClientSecret = "client-secret"
	app := newTestApp(t, cfg)

	flow, err := app.InstallFlow(context.Background())
	if err != nil {
		t.Fatalf("install flow: %v", err)
	}
	ctx := context.Background()
	begun, err := flow.Begin(ctx, "demo")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !strings.HasPrefix(begun.RedirectURL, "https://demo.myshopify.com/admin/oauth/authorize") {
		t.Fatalf("unexpected redirect %q", begun.RedirectURL)
	}
	if !strings.Contains(begun.RedirectURL, "client_id=client-id") {
		t.Fatalf("expected client id in redirect %q", begun.RedirectURL)
	}
}

func TestInstallFlow_RejectsBadRedisURL(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Shopify.ClientID = "client-id"
	cfg.Shopify.ClientSecret = "client-secret"
	cfg.OAuth.RedisURL = "://not-a-url"
	app := newTestApp(t, cfg)
	if _, err := app.InstallFlow(context.Background()); err == nil {
		t.Fatalf("expected redis url error")
	}
}

func TestWebhookProcessor_UninstallDropsImportedToken(t *testing.T) {
	cfg := fileConfig(t)
	app := newTestApp(t, cfg)
	if _, err := app.WebhookProcessor(); err == nil {
		t.Fatalf("expected client secret error")
	}

	cfg.Shopify.ClientSecret = "client-secret"
	app = newTestApp(t, cfg)
	ctx := context.Background()
	tenant, _, err := app.ImportAdminToken(ctx)
	if err != nil {
		t.Fatalf("import admin token: %v", err)
	}
	processor, err := app.WebhookProcessor()
	if err != nil {
		t.Fatalf("webhook processor: %v", err)
	}
	body := []byte(`{"domain":"demo.myshopify.com"}`)
	if _, err := processor.Process(ctx, webhooks.Delivery{
		ID:        "wh-1",
		Topic:     webhooks.TopicAppUninstalled,
		Shop:      tenant.String(),
		Body:      body,
		Signature: shopify.SignWebhookBody(body, "client-secret"),
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, ok, _ := app.Credentials.Get(ctx, tenant); ok {
		t.Fatalf("expected credential to be removed")
	}
}
