package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-shopify-provisioner/core"
)

func TestProvisionProductMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ProvisionProductMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorCodeBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorCodeBadInput, rich.TextCode)
	}
}

func TestProvisionProductMessage_InvalidRequestIsBadInput(t *testing.T) {
	err := (ProvisionProductMessage{Shop: "demo", Request: core.ProvisionRequest{Title: "Tee"}}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if core.HTTPStatus(err) != 400 {
		t.Fatalf("expected 400, got %d", core.HTTPStatus(err))
	}
}

func TestProvisionProductQuery_NilServiceReturnsRichError(t *testing.T) {
	var qry *ProvisionProductQuery
	_, err := qry.Query(context.Background(), ProvisionProductMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
