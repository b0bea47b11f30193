// Package webhooks receives Shopify app webhooks. Each delivery is verified,
// claimed once by its webhook id and handed to the handler registered for its
// topic. app/uninstalled drops the shop's stored credential.
//
// A claim is released when the handler fails, so Shopify's own redelivery
// gets another attempt instead of being deduped as processed.
package webhooks
