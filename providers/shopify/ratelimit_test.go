package shopify

import (
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-shopify-provisioner/transport"
)

func TestNormalizeAdminAPIResponse_MapsShopifyHeaders(t *testing.T) {
	meta := NormalizeAdminAPIResponse(transport.Response{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-Shopify-Shop-Api-Call-Limit": "10/40",
			"X-Request-Id":                  "req_1",
			"X-Shopify-Api-Version":         APIVersion,
		},
	})

	if meta.CallLimit != 40 || meta.CallLimitRemaining != 30 {
		t.Fatalf("expected 30 of 40 remaining, got %d of %d", meta.CallLimitRemaining, meta.CallLimit)
	}
	if meta.RequestID != "req_1" {
		t.Fatalf("expected request id req_1, got %q", meta.RequestID)
	}
	if meta.APIVersion != APIVersion {
		t.Fatalf("expected api version %q, got %q", APIVersion, meta.APIVersion)
	}
}

func TestNormalizeAdminAPIResponse_MapsRetryMetadata(t *testing.T) {
	meta := NormalizeAdminAPIResponse(transport.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte(`{"errors":"Throttled"}`),
	})
	if meta.RetryAfter == nil || *meta.RetryAfter != defaultRetryAfter429 {
		t.Fatalf("expected default retry after, got %#v", meta.RetryAfter)
	}
	if meta.RetryAfterSource != "default" || meta.ErrorType != "throttle" {
		t.Fatalf("unexpected retry metadata %#v", meta)
	}

	meta = NormalizeAdminAPIResponse(transport.Response{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "2.5"},
	})
	if meta.RetryAfter == nil || *meta.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected header retry after, got %#v", meta.RetryAfter)
	}
}

func TestResponseMeta_ApplyQueryCost(t *testing.T) {
	var meta ResponseMeta
	meta.ApplyQueryCost(map[string]any{
		"cost": map[string]any{
			"requestedQueryCost": float64(10),
			"actualQueryCost":    float64(8),
			"throttleStatus": map[string]any{
				"currentlyAvailable": float64(992),
			},
		},
	})
	if meta.RequestedCost != 10 || meta.ActualCost != 8 || meta.AvailableCost != 992 {
		t.Fatalf("unexpected cost %#v", meta)
	}
}
