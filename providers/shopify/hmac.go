package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultCallbackReplayWindow = 24 * time.Hour

// CallbackVerifier checks the signature Shopify attaches to install
// redirects: a hex HMAC-SHA256 over the sorted query, hmac and signature
// excluded.
type CallbackVerifier struct {
	Secret       string
	ReplayWindow time.Duration
	Now          func() time.Time
}

func (v CallbackVerifier) Verify(query url.Values) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("providers/shopify: client secret is required to verify callbacks")
	}
	provided := strings.TrimSpace(query.Get("hmac"))
	if provided == "" {
		return ErrMissingHMAC
	}
	got, err := hex.DecodeString(provided)
	if err != nil {
		return ErrInvalidHMAC
	}
	if !hmac.Equal(computeCallbackMAC(query, secret), got) {
		return ErrInvalidHMAC
	}

	raw := strings.TrimSpace(query.Get("timestamp"))
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("providers/shopify: parse callback timestamp: %w", err)
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	window := v.ReplayWindow
	if window <= 0 {
		window = defaultCallbackReplayWindow
	}
	delta := now.Sub(time.Unix(seconds, 0).UTC())
	if delta < 0 {
		delta = -delta
	}
	if delta > window {
		return ErrStaleCallback
	}
	return nil
}

// SignCallbackQuery returns the hex signature Shopify would attach to query.
func SignCallbackQuery(query url.Values, secret string) string {
	return hex.EncodeToString(computeCallbackMAC(query, strings.TrimSpace(secret)))
}

func computeCallbackMAC(query url.Values, secret string) []byte {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "hmac" || key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, value := range query[key] {
			parts = append(parts, key+"="+value)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "&")))
	return mac.Sum(nil)
}

// WebhookVerifier checks X-Shopify-Hmac-Sha256: a base64 HMAC-SHA256 over
// the raw request body.
type WebhookVerifier struct {
	Secret string
}

func (v WebhookVerifier) VerifyWebhook(body []byte, signature string) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("providers/shopify: client secret is required to verify webhooks")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingHMAC
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidHMAC
	}
	if !hmac.Equal(computeWebhookMAC(body, secret), got) {
		return ErrInvalidHMAC
	}
	return nil
}

// SignWebhookBody returns the header value Shopify would send for body.
func SignWebhookBody(body []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(computeWebhookMAC(body, strings.TrimSpace(secret)))
}

func computeWebhookMAC(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
