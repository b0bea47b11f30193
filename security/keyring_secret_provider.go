package security

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
)

// KeyringSecretProvider encrypts with the current app key and decrypts with
// whichever registered key sealed the token, so APP_KEY can be rotated
// without invalidating stored credentials.
type KeyringSecretProvider struct {
	current  *AppKeySecretProvider
	previous []*AppKeySecretProvider
}

func NewKeyringSecretProvider(current *AppKeySecretProvider, previous ...*AppKeySecretProvider) (*KeyringSecretProvider, error) {
	if current == nil {
		return nil, fmt.Errorf("security: current key is required")
	}
	ring := &KeyringSecretProvider{current: current}
	for _, key := range previous {
		if key != nil {
			ring.previous = append(ring.previous, key)
		}
	}
	return ring, nil
}

// NewKeyringFromStrings versions keys by age: the oldest previous key is v1
// and current is v(len(previous)+1). A lone APP_KEY seals as v1, so adding
// it to previous later still opens its tokens.
func NewKeyringFromStrings(current string, previous []string) (*KeyringSecretProvider, error) {
	keys := make([]string, 0, len(previous))
	for _, key := range previous {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	currentKey, err := NewAppKeySecretProviderFromString(current, WithVersion(len(keys)+1))
	if err != nil {
		return nil, err
	}
	retired := make([]*AppKeySecretProvider, 0, len(keys))
	for i, key := range keys {
		provider, err := NewAppKeySecretProviderFromString(key, WithVersion(len(keys)-i))
		if err != nil {
			return nil, fmt.Errorf("security: previous key %d: %w", i, err)
		}
		retired = append(retired, provider)
	}
	return NewKeyringSecretProvider(currentKey, retired...)
}

func (k *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil || k.current == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	return k.current.Encrypt(ctx, plaintext)
}

func (k *KeyringSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil || k.current == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	for _, key := range append([]*AppKeySecretProvider{k.current}, k.previous...) {
		if key.KeyID() == meta.KeyID && key.Version() == meta.Version {
			return key.Decrypt(ctx, ciphertext)
		}
	}
	return nil, fmt.Errorf("security: no key registered for %q v%d", meta.KeyID, meta.Version)
}

// NeedsRotation reports whether a sealed token was written by a previous key.
func (k *KeyringSecretProvider) NeedsRotation(ciphertext []byte) bool {
	if k == nil || k.current == nil {
		return false
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false
	}
	return meta.KeyID != k.current.KeyID() || meta.Version != k.current.Version()
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)
