package query

import "github.com/goliatone/go-shopify-provisioner/core"

func queryDependencyError(message string) error {
	return core.NewDependencyError(message)
}

func queryValidationError(field string, message string) error {
	return core.NewBadInputError("query: validation failed", map[string]string{field: message})
}
