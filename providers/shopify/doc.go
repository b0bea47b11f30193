// Package shopify talks to the Shopify Admin API: the OAuth install
// endpoints, callback signature checks and the GraphQL mutations used to
// provision products.
package shopify
