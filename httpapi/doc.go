// Package httpapi exposes the install flow and product provisioning over
// HTTP.
package httpapi
