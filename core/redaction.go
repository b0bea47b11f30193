package core

import "strings"

const RedactedValue = "[REDACTED]"

// Shopify prefixes its secrets: admin API tokens, custom app tokens and
// shared secrets. A value carrying one is redacted under any key.
var shopifySecretPrefixes = []string{"shpat_", "shpca_", "shppa_", "shpss_"}

var sensitiveKeyParts = []string{
	"token",
	"secret",
	"password",
	"authorization",
	"api_key",
	"apikey",
	"app_key",
	"hmac",
	"signature",
	"credential",
	"code",
}

// Keys that contain a sensitive part but only describe the secret.
var describingKeys = map[string]struct{}{
	"token_format":     {},
	"token_store_path": {},
	"error_code":       {},
	"error_text_code":  {},
	"status_code":      {},
	"currency_code":    {},
	"text_code":        {},
}

// RedactToken keeps the last four characters of a token for log
// correlation. Short tokens are fully redacted.
func RedactToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return RedactedValue
	}
	return RedactedValue + token[len(token)-4:]
}

// RedactSensitiveMap returns a copy of fields with secret keys and
// token-shaped values replaced. Nested maps and slices are walked.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case string:
		if looksLikeShopifySecret(typed) {
			return RedactedValue
		}
		return typed
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return RedactSensitiveMap(out)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = RedactSensitiveMap(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := describingKeys[key]; ok {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func looksLikeShopifySecret(value string) bool {
	value = strings.TrimSpace(value)
	for _, prefix := range shopifySecretPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
