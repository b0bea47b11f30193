package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-shopify-provisioner/core"
)

func commandDependencyError(message string) error {
	return core.NewDependencyError(message)
}

func commandValidationError(field string, message string) error {
	return core.NewBadInputError("command: validation failed", map[string]string{field: message})
}

// commandWrapValidation keeps the field errors of a request validation
// failure and relabels it for the command layer.
func commandWrapValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorCodeBadInput)
}
