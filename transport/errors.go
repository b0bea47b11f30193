package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-shopify-provisioner/core"
)

// transportFailure builds the go-errors envelope for a failed exchange. A
// nil cause starts a new error; otherwise the cause is wrapped.
func transportFailure(
	cause error,
	category goerrors.Category,
	code int,
	message string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if cause == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(cause, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCodeFor(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// textCodeFor maps a category to the provisioning text codes, so transport
// failures read the same as saga failures at the edge.
func textCodeFor(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorCodeBadInput
	case goerrors.CategoryExternal:
		return core.ErrorCodeRemoteTransport
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorCodeOAuthInvalid
	}
	return core.ErrorCodeInternal
}
