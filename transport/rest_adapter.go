package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-shopify-provisioner/core"
)

const KindREST = "rest"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter performs one HTTP exchange and returns the raw response. A
// non-2xx status is not an error here; callers classify it.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Logger               core.Logger
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
		Logger:               glog.Nop(),
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, transportFailure(
			nil,
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			"transport: rest adapter requires an http client",
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return Response{}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, transportFailure(
			err,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: create http request",
			map[string]any{"adapter": KindREST, "method": method},
		)
	}
	applyHeaders(httpReq.Header, a.DefaultHeaders)
	applyHeaders(httpReq.Header, req.Headers)

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, transportFailure(
			err,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			"transport: execute http request",
			map[string]any{"adapter": KindREST, "method": method, "host": httpReq.URL.Host},
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, transportFailure(
			err,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			"transport: read response body",
			map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(body)) > maxBodyBytes {
		return Response{}, transportFailure(
			nil,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			map[string]any{
				"adapter":          KindREST,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}

	duration := time.Since(startedAt).Milliseconds()
	glog.Ensure(a.Logger).WithContext(ctx).Debug("http exchange",
		"method", method,
		"host", httpReq.URL.Host,
		"path", httpReq.URL.Path,
		"status_code", httpRes.StatusCode,
		"duration_ms", duration,
	)

	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": duration,
			"kind":        KindREST,
		},
	}, nil
}

// IsSuccess reports a 2xx status.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func buildURL(raw string, extra map[string]string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", transportFailure(
			nil,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: request url is required",
			map[string]any{"adapter": KindREST},
		)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", transportFailure(
			err,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: invalid request url",
			map[string]any{"adapter": KindREST},
		)
	}
	if len(extra) > 0 {
		query := parsed.Query()
		for key, value := range extra {
			if strings.TrimSpace(key) == "" {
				continue
			}
			query.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func applyHeaders(target http.Header, headers map[string]string) {
	for key, value := range headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		target.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ Adapter = (*RESTAdapter)(nil)
