package command

import (
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/install"
)

const (
	TypeProvisionProduct = "provisioner.command.product.provision"
	TypeCreateProduct    = "provisioner.command.product.create"
	TypeCompleteInstall  = "provisioner.command.install.complete"
	TypePutCredential    = "provisioner.command.credential.put"
)

// ProvisionProductMessage runs the full saga for one shop.
type ProvisionProductMessage struct {
	Shop    string
	Request core.ProvisionRequest
}

func (ProvisionProductMessage) Type() string { return TypeProvisionProduct }

func (m ProvisionProductMessage) Validate() error {
	if err := validateShop(m.Shop); err != nil {
		return err
	}
	return commandWrapValidation(m.Request.Normalized().Validate(), "command: invalid provision request")
}

// CreateProductMessage runs only the product create step.
type CreateProductMessage struct {
	Shop  string
	Title string
	SKU   string
}

func (CreateProductMessage) Type() string { return TypeCreateProduct }

func (m CreateProductMessage) Validate() error {
	if err := validateShop(m.Shop); err != nil {
		return err
	}
	if strings.TrimSpace(m.Title) == "" {
		return commandValidationError("title", "title is required")
	}
	if strings.TrimSpace(m.SKU) == "" {
		return commandValidationError("sku", "sku is required")
	}
	return nil
}

type CompleteInstallMessage struct {
	Callback install.CallbackRequest
}

func (CompleteInstallMessage) Type() string { return TypeCompleteInstall }

func (m CompleteInstallMessage) Validate() error {
	if strings.TrimSpace(m.Callback.Shop) == "" {
		return commandValidationError("shop", "shop is required")
	}
	if strings.TrimSpace(m.Callback.Code) == "" {
		return commandValidationError("code", "code is required")
	}
	return nil
}

// PutCredentialMessage imports an access token obtained outside the install
// flow, for example a custom app admin token.
type PutCredentialMessage struct {
	Shop   string
	Record core.CredentialRecord
}

func (PutCredentialMessage) Type() string { return TypePutCredential }

func (m PutCredentialMessage) Validate() error {
	if err := validateShop(m.Shop); err != nil {
		return err
	}
	if strings.TrimSpace(m.Record.AccessToken) == "" {
		return commandValidationError("accessToken", "access token is required")
	}
	return nil
}

func validateShop(shop string) error {
	if strings.TrimSpace(shop) == "" {
		return commandValidationError("shop", "shop is required")
	}
	if _, err := core.NormalizeTenantID(shop); err != nil {
		return commandValidationError("shop", err.Error())
	}
	return nil
}
