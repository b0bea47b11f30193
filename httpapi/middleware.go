package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

const HeaderRequestID = "X-Request-Id"

func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
		})
	}
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func Recover(logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).Error("panic serving request",
						"path", r.URL.Path,
						"request_id", RequestIDFrom(r.Context()),
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]any{
						"error":    "internal error",
						"textCode": core.ErrorCodeInternal,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
