// Package bootstrap wires configuration into the credential backend, the
// Admin API client factory, the provisioning saga and the install flow. Both
// binaries under cmd/ start from New.
package bootstrap
