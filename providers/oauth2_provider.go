package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenRequestFormat selects how the code exchange body is encoded.
type TokenRequestFormat string

const (
	TokenRequestForm TokenRequestFormat = "form"
	TokenRequestJSON TokenRequestFormat = "json"
)

type OAuth2Config struct {
	ID                  string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	TokenRequestFormat  TokenRequestFormat
	DefaultScopes       []string
	ScopeSeparator      string
	TokenRequestTimeout time.Duration
	HTTPClient          HTTPDoer
}

// AuthorizeRequest carries the per-request parts of the redirect. AuthURL is
// per request because some platforms host it on the tenant's own domain.
type AuthorizeRequest struct {
	AuthURL     string
	RedirectURI string
	State       string
	Scopes      []string
}

type ExchangeRequest struct {
	TokenURL    string
	Code        string
	RedirectURI string
}

type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresIn    int64
}

type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

type tokenEndpointPayload struct {
	Token
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.DefaultScopes = NormalizeScopes(cfg.DefaultScopes)
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}
	switch cfg.TokenRequestFormat {
	case TokenRequestForm, TokenRequestJSON:
	case "":
		cfg.TokenRequestFormat = TokenRequestForm
	default:
		return nil, fmt.Errorf("providers: unknown token request format %q", cfg.TokenRequestFormat)
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}
	return &OAuth2Provider{cfg: cfg, httpClient: httpClient}, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Provider) DefaultScopes() []string {
	if p == nil {
		return []string{}
	}
	return append([]string(nil), p.cfg.DefaultScopes...)
}

func (p *OAuth2Provider) AuthorizeURL(req AuthorizeRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 provider is nil")
	}
	authURL := strings.TrimSpace(req.AuthURL)
	if authURL == "" {
		return "", fmt.Errorf("providers: auth url is required for provider %q", p.cfg.ID)
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return "", fmt.Errorf("providers: state is required")
	}
	scopes := NormalizeScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = p.DefaultScopes()
	}

	values := url.Values{}
	values.Set("client_id", p.cfg.ClientID)
	values.Set("scope", strings.Join(scopes, p.cfg.ScopeSeparator))
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	values.Set("state", state)

	if strings.Contains(authURL, "?") {
		return authURL + "&" + values.Encode(), nil
	}
	return authURL + "?" + values.Encode(), nil
}

// ExchangeCode trades an authorization code for a token. Endpoint errors,
// non-2xx answers and a missing access token are all errors.
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, req ExchangeRequest) (Token, error) {
	if p == nil {
		return Token{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	tokenURL := strings.TrimSpace(req.TokenURL)
	if tokenURL == "" {
		return Token{}, fmt.Errorf("providers: token url is required for provider %q", p.cfg.ID)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return Token{}, fmt.Errorf("providers: auth code is required")
	}

	fields := map[string]string{
		"client_id": p.cfg.ClientID,
		"code":      code,
	}
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		fields["client_secret"] = p.cfg.ClientSecret
	}
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		fields["redirect_uri"] = redirectURI
	}

	payload, err := p.fetchToken(ctx, tokenURL, fields)
	if err != nil {
		return Token{}, err
	}
	return payload.Token, nil
}

func (p *OAuth2Provider) fetchToken(ctx context.Context, tokenURL string, fields map[string]string) (tokenEndpointPayload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		body        io.Reader
		contentType string
	)
	switch p.cfg.TokenRequestFormat {
	case TokenRequestJSON:
		raw, err := json.Marshal(fields)
		if err != nil {
			return tokenEndpointPayload{}, fmt.Errorf("providers: encode token request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	default:
		values := url.Values{}
		values.Set("grant_type", "authorization_code")
		for key, value := range fields {
			values.Set(key, value)
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, tokenURL, body)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(raw)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(raw, response.Header.Get("Content-Type"))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func describeTokenError(payload tokenEndpointPayload) string {
	if description := strings.TrimSpace(payload.ErrorDescription); description != "" {
		return description
	}
	if code := strings.TrimSpace(payload.ErrorCode); code != "" {
		return code
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil || strings.Contains(contentType, "json") {
		return payload, err
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		Token: Token{
			AccessToken:  readAnyString(decoded["access_token"]),
			TokenType:    readAnyString(decoded["token_type"]),
			RefreshToken: readAnyString(decoded["refresh_token"]),
			Scope:        readAnyString(decoded["scope"]),
			ExpiresIn:    readAnyInt64(decoded["expires_in"]),
		},
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		Token: Token{
			AccessToken:  strings.TrimSpace(values.Get("access_token")),
			TokenType:    strings.TrimSpace(values.Get("token_type")),
			RefreshToken: strings.TrimSpace(values.Get("refresh_token")),
			Scope:        strings.TrimSpace(values.Get("scope")),
			ExpiresIn:    expiresIn,
		},
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

// ParseScopeList splits a granted scope string on commas or spaces.
func ParseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

// NormalizeScopes lowercases, dedupes and sorts.
func NormalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(strings.ToLower(value))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	sort.Strings(values)
	return values
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
