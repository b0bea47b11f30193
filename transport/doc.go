// Package transport performs the outbound HTTP and GraphQL exchanges used by
// platform clients. Failures are returned as go-errors envelopes.
package transport
