package core

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestNormalizeTenantID(t *testing.T) {
	cases := map[string]TenantID{
		"demo":                             "demo.myshopify.com",
		"Demo.myshopify.com":               "demo.myshopify.com",
		" https://demo.myshopify.com/ ":    "demo.myshopify.com",
		"https://demo.myshopify.com/admin": "demo.myshopify.com",
	}
	for input, want := range cases {
		got, err := NormalizeTenantID(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %q, got %q", input, want, got)
		}
	}

	for _, input := range []string{"", "   ", "demo.example.com", "demo shop"} {
		if _, err := NormalizeTenantID(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestProvisionRequestNormalizedDefaultsCurrency(t *testing.T) {
	req := ProvisionRequest{Title: "  Tee ", Price: " 10.00", SKU: "SKU-1 ", CurrencyCode: " usd "}.Normalized()
	if req.Title != "Tee" || req.Price != "10.00" || req.SKU != "SKU-1" {
		t.Fatalf("expected trimmed fields, got %#v", req)
	}
	if req.CurrencyCode != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", req.CurrencyCode)
	}
	if got := (ProvisionRequest{}).Normalized().CurrencyCode; got != DefaultCurrencyCode {
		t.Fatalf("expected default currency %q, got %q", DefaultCurrencyCode, got)
	}
}

func TestProvisionRequestValidate(t *testing.T) {
	valid := ProvisionRequest{Title: "Tee", Price: "1500", SKU: "TEE-1", Quantity: 3, LocationID: "gid://shopify/Location/1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	zeroQty := ProvisionRequest{Title: "Tee", Price: "1500", SKU: "TEE-1"}
	if err := zeroQty.Validate(); err != nil {
		t.Fatalf("expected zero quantity without location to be valid, got %v", err)
	}

	err := ProvisionRequest{Price: "abc", Quantity: -1}.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != ErrorCodeBadInput {
		t.Fatalf("expected %q text code, got %q", ErrorCodeBadInput, rich.TextCode)
	}
	fields := map[string]bool{}
	for _, fieldErr := range rich.AllValidationErrors() {
		fields[fieldErr.Field] = true
	}
	for _, field := range []string{"title", "price", "sku", "quantity"} {
		if !fields[field] {
			t.Fatalf("expected validation error for %q, got %#v", field, fields)
		}
	}
}

func TestProvisionRequestValidate_PriceMustBeDecimal(t *testing.T) {
	cases := []struct {
		price string
		ok    bool
	}{
		{price: "1500", ok: true},
		{price: "19.99", ok: true},
		{price: "0.0001", ok: true},
		{price: "0", ok: true},
		{price: "NaN"},
		{price: "Inf"},
		{price: "0x1p3"},
		{price: "1e3"},
		{price: "-1"},
		{price: "+10"},
		{price: "1.23456"},
		{price: "1."},
		{price: ".5"},
		{price: "1,500"},
	}
	for _, tc := range cases {
		err := ProvisionRequest{Title: "Tee", Price: tc.price, SKU: "TEE-1"}.Validate()
		if tc.ok && err != nil {
			t.Fatalf("price %q: expected valid, got %v", tc.price, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("price %q: expected validation error", tc.price)
		}
	}
}

func TestCredentialRecordValidate(t *testing.T) {
	if err := (CredentialRecord{}).Validate(); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
	if err := (CredentialRecord{AccessToken: "shpat_1"}).Validate(); err != nil {
		t.Fatalf("expected token without scope to be valid, got %v", err)
	}
}

func TestSagaResultState(t *testing.T) {
	if got := (SagaResult{}).State(); got != SagaStateStart {
		t.Fatalf("expected start state, got %q", got)
	}
	result := SagaResult{Transitions: []SagaState{SagaStateStart, SagaStateProductCreated, SagaStateFailed}}
	if got := result.State(); got != SagaStateFailed {
		t.Fatalf("expected failed state, got %q", got)
	}
}
