// Package install runs the OAuth install for a shop and writes the
// resulting credential.
package install
