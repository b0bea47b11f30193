package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const KindGraphQL = "graphql"

type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Headers       map[string]string
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLEnvelope is the standard {data, errors, extensions} response body.
type GraphQLEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

func (e GraphQLEnvelope) ErrorMessages() []string {
	out := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		if message := strings.TrimSpace(item.Message); message != "" {
			out = append(out, message)
		}
	}
	return out
}

type GraphQLAdapter struct {
	Endpoint string
	REST     *RESTAdapter
}

func NewGraphQLAdapter(endpoint string, client HTTPDoer) *GraphQLAdapter {
	return &GraphQLAdapter{
		Endpoint: strings.TrimSpace(endpoint),
		REST:     NewRESTAdapter(client),
	}
}

func (*GraphQLAdapter) Kind() string {
	return KindGraphQL
}

// Execute posts one GraphQL document. The raw response is returned for any
// status so the caller can inspect headers and classify failures.
func (a *GraphQLAdapter) Execute(ctx context.Context, req GraphQLRequest) (Response, error) {
	if a == nil || a.REST == nil {
		return Response{}, transportFailure(
			nil,
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			"transport: graphql adapter requires a rest adapter",
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if a.Endpoint == "" {
		return Response{}, transportFailure(
			nil,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: graphql endpoint is required",
			map[string]any{"adapter": KindGraphQL},
		)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, transportFailure(
			nil,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: graphql query is required",
			map[string]any{"adapter": KindGraphQL},
		)
	}

	payload := map[string]any{"query": query}
	if name := strings.TrimSpace(req.OperationName); name != "" {
		payload["operationName"] = name
	}
	if req.Variables != nil {
		payload["variables"] = req.Variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, transportFailure(
			err,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			"transport: marshal graphql payload",
			map[string]any{"adapter": KindGraphQL},
		)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	for key, value := range req.Headers {
		headers[key] = value
	}

	response, err := a.REST.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     a.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return Response{}, transportFailure(
			err,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			"transport: graphql request failed",
			map[string]any{"adapter": KindGraphQL, "operation": req.OperationName},
		)
	}
	response.Metadata = ensureMetadata(response.Metadata)
	response.Metadata["kind"] = KindGraphQL
	if req.OperationName != "" {
		response.Metadata["operation"] = req.OperationName
	}
	return response, nil
}

// DecodeGraphQLEnvelope parses a GraphQL response body. An empty body or one
// that is not JSON is an error.
func DecodeGraphQLEnvelope(body []byte) (GraphQLEnvelope, error) {
	var envelope GraphQLEnvelope
	if len(strings.TrimSpace(string(body))) == 0 {
		return envelope, transportFailure(
			nil,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			"transport: empty graphql response",
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, transportFailure(
			err,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			"transport: decode graphql response",
			map[string]any{"adapter": KindGraphQL},
		)
	}
	return envelope, nil
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}
