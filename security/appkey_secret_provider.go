package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
)

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals shop access tokens with AES-256-GCM under a key
// derived from the APP_KEY setting.
type AppKeySecretProvider struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

// WithKeyID names the key in every envelope it seals. Defaults to app-key.
func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" && !strings.Contains(id, ".") {
			provider.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *AppKeySecretProvider) {
		if version > 0 {
			provider.version = version
		}
	}
}

// NewAppKeySecretProvider hashes the key material to 32 bytes, so any
// APP_KEY length selects AES-256.
func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	provider := &AppKeySecretProvider{aead: aead, keyID: "app-key", version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	env := envelope{KeyID: p.keyID, Version: p.version, Nonce: make([]byte, p.aead.NonceSize())}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	env.Ciphertext = p.aead.Seal(nil, env.Nonce, plaintext, env.additionalData())
	return encodeEnvelope(env), nil
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if env.KeyID != p.keyID || env.Version != p.version {
		return nil, fmt.Errorf("security: sealed by %s v%d, this key is %s v%d", env.KeyID, env.Version, p.keyID, p.version)
	}
	if len(env.Nonce) != p.aead.NonceSize() {
		return nil, fmt.Errorf("security: nonce has %d bytes, want %d", len(env.Nonce), p.aead.NonceSize())
	}
	plaintext, err := p.aead.Open(nil, env.Nonce, env.Ciphertext, env.additionalData())
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
