package credentials

import "github.com/goliatone/go-shopify-provisioner/core"

var (
	_ core.CredentialStore = (*FileStore)(nil)
	_ core.CredentialStore = (*MemoryStore)(nil)
	_ core.CredentialStore = (*CachedStore)(nil)
)
