package security

import (
	"bytes"
	"context"
	"testing"
)

func TestAppKeySecretProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("tokens-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte("shpat_token_value_123")
	encrypted, err := provider.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected encrypted payload to hide plaintext")
	}
	if !bytes.HasPrefix(encrypted, []byte(envelopePrefix)) {
		t.Fatalf("expected envelope prefix")
	}

	decrypted, err := provider.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}

	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "tokens-v1" || meta.Version != 3 || meta.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected metadata %#v", meta)
	}
}

func TestAppKeySecretProvider_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("tokens-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("tokens-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestAppKeySecretProvider_RejectsEmptyInputs(t *testing.T) {
	if _, err := NewAppKeySecretProviderFromString("  "); err == nil {
		t.Fatalf("expected key material requirement")
	}
	provider, err := NewAppKeySecretProviderFromString("k")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Encrypt(context.Background(), nil); err == nil {
		t.Fatalf("expected plaintext requirement")
	}
	if _, err := provider.Decrypt(context.Background(), []byte("not-an-envelope")); err == nil {
		t.Fatalf("expected envelope prefix error")
	}
}

func TestKeyringSecretProvider_DecryptsWithPreviousKey(t *testing.T) {
	ctx := context.Background()
	oldKey, err := NewAppKeySecretProviderFromString("old-key", WithKeyID("app-key"), WithVersion(1))
	if err != nil {
		t.Fatalf("old key: %v", err)
	}
	newKey, err := NewAppKeySecretProviderFromString("new-key", WithKeyID("app-key"), WithVersion(2))
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	sealedWithOld, err := oldKey.Encrypt(ctx, []byte("shpat_old"))
	if err != nil {
		t.Fatalf("encrypt old: %v", err)
	}

	ring, err := NewKeyringSecretProvider(newKey, oldKey)
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	plaintext, err := ring.Decrypt(ctx, sealedWithOld)
	if err != nil {
		t.Fatalf("decrypt with previous key: %v", err)
	}
	if string(plaintext) != "shpat_old" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}
	if !ring.NeedsRotation(sealedWithOld) {
		t.Fatalf("expected token sealed by previous key to need rotation")
	}

	sealedWithNew, err := ring.Encrypt(ctx, []byte("shpat_new"))
	if err != nil {
		t.Fatalf("encrypt new: %v", err)
	}
	if ring.NeedsRotation(sealedWithNew) {
		t.Fatalf("expected token sealed by current key to be current")
	}

	onlyNew, _ := NewKeyringSecretProvider(newKey)
	if _, err := onlyNew.Decrypt(ctx, sealedWithOld); err == nil {
		t.Fatalf("expected decrypt failure without previous key")
	}
}

func TestNewKeyringFromStrings_OpensTokensSealedBeforeRotation(t *testing.T) {
	ctx := context.Background()
	original, err := NewKeyringFromStrings("first-key", nil)
	if err != nil {
		t.Fatalf("original keyring: %v", err)
	}
	sealed, err := original.Encrypt(ctx, []byte("shpat_first"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	rotated, err := NewKeyringFromStrings("second-key", []string{"first-key", " "})
	if err != nil {
		t.Fatalf("rotated keyring: %v", err)
	}
	plaintext, err := rotated.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("decrypt after rotation: %v", err)
	}
	if string(plaintext) != "shpat_first" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}
	if !rotated.NeedsRotation(sealed) {
		t.Fatalf("expected token sealed by the retired key to need rotation")
	}
	if _, err := NewKeyringFromStrings("", nil); err == nil {
		t.Fatalf("expected empty current key error")
	}
}

func TestAppKeySecretProvider_RejectsRelabelledEnvelope(t *testing.T) {
	ctx := context.Background()
	v1, err := NewAppKeySecretProviderFromString("shared-key", WithVersion(1))
	if err != nil {
		t.Fatalf("v1 key: %v", err)
	}
	v2, err := NewAppKeySecretProviderFromString("shared-key", WithVersion(2))
	if err != nil {
		t.Fatalf("v2 key: %v", err)
	}
	sealed, err := v1.Encrypt(ctx, []byte("shpat_value"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	relabelled := bytes.Replace(sealed, []byte("app-key.1."), []byte("app-key.2."), 1)
	if bytes.Equal(relabelled, sealed) {
		t.Fatalf("expected version label in envelope %q", sealed)
	}
	if _, err := v2.Decrypt(ctx, relabelled); err == nil {
		t.Fatalf("expected authenticated header to reject a relabelled envelope")
	}
}
