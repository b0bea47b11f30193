package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-shopify-provisioner/core"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// errorBody renders an error envelope: message, text code and any field
// errors.
func errorBody(err error) (int, map[string]any) {
	mapped := core.MapError(err)
	if mapped == nil {
		return http.StatusInternalServerError, map[string]any{
			"error":    "internal error",
			"textCode": core.ErrorCodeInternal,
		}
	}
	body := map[string]any{
		"error":    mapped.Message,
		"textCode": mapped.TextCode,
	}
	if fields := mapped.AllValidationErrors(); len(fields) > 0 {
		out := make(map[string]string, len(fields))
		for _, field := range fields {
			out[field.Field] = field.Message
		}
		body["fields"] = out
	}
	return mapped.Code, body
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

// failureBody describes a saga that stopped at a step. Partial IDs are
// always present so callers can find what was already created.
func failureBody(shop string, message string, result core.SagaResult) (int, map[string]any) {
	status, body := errorBody(result.Err)
	body["ok"] = false
	body["error"] = message
	body["shop"] = shop
	body["runId"] = result.RunID
	body["step"] = string(result.FailedStep)
	body["partialIds"] = result.PartialIDs
	if len(result.UserErrors) > 0 {
		body["userErrors"] = result.UserErrors
	} else {
		body["message"] = result.Message
	}
	return status, body
}
