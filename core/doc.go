// Package core contains the provisioner domain types, contracts and error
// envelopes. Storage, transport and platform adapters depend on this package;
// core must not depend on them.
package core
