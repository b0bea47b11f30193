package shopify

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func signedQuery(secret string, now time.Time) url.Values {
	query := url.Values{}
	query.Set("shop", "demo.myshopify.com")
	query.Set("code", "code_1")
	query.Set("state", "state_1")
	query.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	query.Set("hmac", SignCallbackQuery(query, secret))
	return query
}

func TestCallbackVerifier_AcceptsSignedQuery(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	verifier := CallbackVerifier{Secret: "secret", Now: func() time.Time { return now }}

	if err := verifier.Verify(signedQuery("secret", now)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestCallbackVerifier_RejectsTamperedQuery(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	verifier := CallbackVerifier{Secret: "secret", Now: func() time.Time { return now }}

	query := signedQuery("secret", now)
	query.Set("shop", "other.myshopify.com")
	if err := verifier.Verify(query); !errors.Is(err, ErrInvalidHMAC) {
		t.Fatalf("expected invalid hmac, got %v", err)
	}

	wrongSecret := signedQuery("other-secret", now)
	if err := verifier.Verify(wrongSecret); !errors.Is(err, ErrInvalidHMAC) {
		t.Fatalf("expected invalid hmac for wrong secret, got %v", err)
	}

	query.Del("hmac")
	if err := verifier.Verify(query); !errors.Is(err, ErrMissingHMAC) {
		t.Fatalf("expected missing hmac, got %v", err)
	}
}

func TestCallbackVerifier_RejectsStaleTimestamp(t *testing.T) {
	signedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	verifier := CallbackVerifier{
		Secret:       "secret",
		ReplayWindow: time.Minute,
		Now:          func() time.Time { return signedAt.Add(2 * time.Minute) },
	}
	if err := verifier.Verify(signedQuery("secret", signedAt)); !errors.Is(err, ErrStaleCallback) {
		t.Fatalf("expected stale callback, got %v", err)
	}
}

func TestWebhookVerifier_ChecksBodySignature(t *testing.T) {
	body := []byte(`{"id":1,"domain":"demo.myshopify.com"}`)
	verifier := WebhookVerifier{Secret: "shpss_secret"}

	if err := verifier.VerifyWebhook(body, SignWebhookBody(body, "shpss_secret")); err != nil {
		t.Fatalf("expected signed body to verify, got %v", err)
	}
	if err := verifier.VerifyWebhook([]byte(`{"id":2}`), SignWebhookBody(body, "shpss_secret")); !errors.Is(err, ErrInvalidHMAC) {
		t.Fatalf("expected mismatch for altered body, got %v", err)
	}
	if err := verifier.VerifyWebhook(body, ""); !errors.Is(err, ErrMissingHMAC) {
		t.Fatalf("expected missing hmac, got %v", err)
	}
	if err := verifier.VerifyWebhook(body, "not base64!"); !errors.Is(err, ErrInvalidHMAC) {
		t.Fatalf("expected invalid hmac for bad encoding, got %v", err)
	}
	if err := (WebhookVerifier{}).VerifyWebhook(body, "x"); err == nil {
		t.Fatalf("expected secret error")
	}
}
