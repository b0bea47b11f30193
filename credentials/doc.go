// Package credentials holds CredentialStore backends that do not need a
// database: a JSON snapshot file, an in-process map, and a read-through cache
// decorator for any other backend.
package credentials
