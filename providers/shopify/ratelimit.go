package shopify

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/ratelimit"
	"github.com/goliatone/go-shopify-provisioner/transport"
)

const defaultRetryAfter429 = 2 * time.Second

// ResponseMeta is the call-budget and tracing information Shopify returns
// alongside every Admin API response.
type ResponseMeta struct {
	StatusCode         int
	RequestID          string
	APIVersion         string
	CallLimitUsed      int
	CallLimit          int
	CallLimitRemaining int
	RetryAfter         *time.Duration
	RetryAfterSource   string
	RequestedCost      int64
	ActualCost         int64
	AvailableCost      int64
	ErrorType          string
}

func NormalizeAdminAPIResponse(response transport.Response) ResponseMeta {
	meta := ResponseMeta{
		StatusCode: response.StatusCode,
		RequestID:  strings.TrimSpace(response.Header("x-request-id")),
		APIVersion: strings.TrimSpace(response.Header("x-shopify-api-version")),
	}

	if used, limit, ok := parseShopifyCallLimit(response.Header("x-shopify-shop-api-call-limit")); ok {
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		meta.CallLimitUsed = used
		meta.CallLimit = limit
		meta.CallLimitRemaining = remaining
	}

	if retryAfter, ok := parseRetryAfter(response.Header("retry-after")); ok {
		meta.RetryAfter = &retryAfter
		meta.RetryAfterSource = "header"
	}
	if meta.StatusCode == http.StatusTooManyRequests && meta.RetryAfter == nil {
		retryAfter := defaultRetryAfter429
		meta.RetryAfter = &retryAfter
		meta.RetryAfterSource = "default"
	}

	meta.ErrorType = readErrorType(response.Body)
	return meta
}

// ApplyQueryCost copies the GraphQL cost extension into meta.
func (m *ResponseMeta) ApplyQueryCost(extensions map[string]any) {
	if m == nil || len(extensions) == 0 {
		return
	}
	cost, ok := extensions["cost"].(map[string]any)
	if !ok {
		return
	}
	m.RequestedCost = readInt64(cost["requestedQueryCost"])
	m.ActualCost = readInt64(cost["actualQueryCost"])
	if throttle, ok := cost["throttleStatus"].(map[string]any); ok {
		m.AvailableCost = readInt64(throttle["currentlyAvailable"])
	}
}

// Observation reports the call budget to a throttle policy.
func (m ResponseMeta) Observation() ratelimit.Observation {
	return ratelimit.Observation{
		StatusCode: m.StatusCode,
		Limit:      m.CallLimit,
		Remaining:  m.CallLimitRemaining,
		HasBudget:  m.CallLimit > 0,
		RetryAfter: m.RetryAfter,
	}
}

// LogFields flattens the populated fields into key/value pairs.
func (m ResponseMeta) LogFields() []any {
	fields := []any{"status_code", m.StatusCode}
	if m.RequestID != "" {
		fields = append(fields, "shopify_request_id", m.RequestID)
	}
	if m.APIVersion != "" {
		fields = append(fields, "shopify_api_version", m.APIVersion)
	}
	if m.CallLimit > 0 {
		fields = append(fields, "shopify_api_call_limit", m.CallLimit, "shopify_api_call_remaining", m.CallLimitRemaining)
	}
	if m.ActualCost > 0 || m.RequestedCost > 0 {
		fields = append(fields, "shopify_query_cost", m.ActualCost, "shopify_cost_available", m.AvailableCost)
	}
	if m.RetryAfter != nil {
		fields = append(fields, "shopify_retry_after_seconds", int64(m.RetryAfter.Seconds()), "shopify_retry_after_source", m.RetryAfterSource)
	}
	if m.ErrorType != "" {
		fields = append(fields, "shopify_error_type", m.ErrorType)
	}
	return fields
}

func parseShopifyCallLimit(value string) (used int, limit int, ok bool) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || used < 0 {
		return 0, 0, false
	}
	limit, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || limit <= 0 {
		return 0, 0, false
	}
	return used, limit, true
}

func parseRetryAfter(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func readErrorType(body []byte) string {
	lowered := strings.ToLower(strings.TrimSpace(string(body)))
	if lowered == "" {
		return ""
	}
	if strings.Contains(lowered, "throttle") {
		return "throttle"
	}
	if strings.Contains(lowered, "rate limit") {
		return "rate_limit"
	}
	return ""
}

func readInt64(value any) int64 {
	switch typed := value.(type) {
	case float64:
		return int64(typed)
	case int:
		return int64(typed)
	case int64:
		return typed
	default:
		return 0
	}
}
