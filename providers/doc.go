// Package providers holds the OAuth2 authorization-code plumbing shared by
// platform providers: building the authorize redirect and exchanging the
// callback code at the token endpoint.
package providers
