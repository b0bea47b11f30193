package shopify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/credentials"
)

func TestClientFactory_MissingCredential(t *testing.T) {
	factory := NewClientFactory(credentials.NewMemoryStore())

	_, err := factory.Create(context.Background(), "demo.myshopify.com")
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected credential not found, got %v", err)
	}
	if core.HTTPStatus(err) != 400 {
		t.Fatalf("expected 400 for missing credential, got %d", core.HTTPStatus(err))
	}
}

func TestClientFactory_BindsStoredToken(t *testing.T) {
	store := credentials.NewMemoryStore()
	if err := store.Put(context.Background(), "demo.myshopify.com", core.CredentialRecord{
		AccessToken: "shpat_token",
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	factory := NewClientFactory(store, WithShopURL(func(core.TenantID) string { return "http://127.0.0.1:1" }))
	client, err := factory.Create(context.Background(), "demo.myshopify.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	typed, ok := client.(*Client)
	if !ok {
		t.Fatalf("expected *Client, got %T", client)
	}
	if typed.token != "shpat_token" || typed.Tenant() != "demo.myshopify.com" {
		t.Fatalf("unexpected client binding %#v", typed)
	}
	if typed.Endpoint() != "http://127.0.0.1:1/admin/api/"+APIVersion+"/graphql.json" {
		t.Fatalf("unexpected endpoint %q", typed.Endpoint())
	}
}
