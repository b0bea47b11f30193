package install

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-shopify-provisioner/core"
)

var (
	ErrInstallMissingCode = errors.New("install: shop and code are required")
	ErrInvalidShop        = errors.New("install: invalid shop")
	ErrStateMismatch      = errors.New("install: oauth state does not match shop")
)

func missingCodeError() error {
	return goerrors.Wrap(ErrInstallMissingCode, goerrors.CategoryBadInput, "shop and code are required").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorCodeBadInput)
}

func invalidShopError(cause error) error {
	return goerrors.Wrap(errors.Join(ErrInvalidShop, cause), goerrors.CategoryBadInput, "invalid shop").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorCodeBadInput)
}
