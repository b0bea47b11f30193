package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// A sealed token reads
//
//	provisioner.token.v1:<kid>.<version>.<nonce>.<ciphertext>
//
// with nonce and ciphertext in unpadded base64url. The kid and version are
// authenticated as GCM additional data.
const (
	envelopePrefix    = "provisioner.token.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type envelope struct {
	KeyID      string
	Version    int
	Nonce      []byte
	Ciphertext []byte
}

type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

// ParseEnvelopeMetadata reads the key id and version from a sealed token
// without decrypting it.
func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{
		KeyID:     env.KeyID,
		Version:   env.Version,
		Algorithm: envelopeAlgorithm,
	}, nil
}

func (e envelope) additionalData() []byte {
	return []byte(e.KeyID + "." + strconv.Itoa(e.Version))
}

func encodeEnvelope(env envelope) []byte {
	var buf bytes.Buffer
	buf.WriteString(envelopePrefix)
	buf.Write(env.additionalData())
	buf.WriteByte('.')
	buf.WriteString(base64.RawURLEncoding.EncodeToString(env.Nonce))
	buf.WriteByte('.')
	buf.WriteString(base64.RawURLEncoding.EncodeToString(env.Ciphertext))
	return buf.Bytes()
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	payload, ok := strings.CutPrefix(string(ciphertext), envelopePrefix)
	if !ok {
		return envelope{}, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}
	parts := strings.Split(payload, ".")
	if len(parts) != 4 {
		return envelope{}, fmt.Errorf("security: envelope has %d parts, want 4", len(parts))
	}
	keyID := strings.TrimSpace(parts[0])
	if keyID == "" {
		return envelope{}, fmt.Errorf("security: envelope key id is required")
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil || version < 1 {
		return envelope{}, fmt.Errorf("security: invalid envelope version %q", parts[1])
	}
	nonce, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return envelope{}, fmt.Errorf("security: decode nonce: %w", err)
	}
	sealed, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(sealed) == 0 {
		return envelope{}, fmt.Errorf("security: envelope ciphertext is required")
	}
	return envelope{KeyID: keyID, Version: version, Nonce: nonce, Ciphertext: sealed}, nil
}
