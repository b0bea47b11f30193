package shopify

import "errors"

var (
	ErrMissingHMAC       = errors.New("providers/shopify: hmac is required")
	ErrInvalidHMAC       = errors.New("providers/shopify: hmac mismatch")
	ErrStaleCallback     = errors.New("providers/shopify: callback timestamp outside replay window")
	ErrMissingAdminToken = errors.New("providers/shopify: admin access token is required")
)
