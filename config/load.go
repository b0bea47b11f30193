package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvConfigFile = "PROVISIONER_CONFIG"

type LookupFunc func(key string) (string, bool)

type LoadOption func(*loader)

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup LookupFunc) LoadOption {
	return func(l *loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

// WithEnvFiles reads dotenv files. Process environment wins over them.
func WithEnvFiles(paths ...string) LoadOption {
	return func(l *loader) {
		l.envFiles = append([]string(nil), paths...)
	}
}

// WithConfigFile sets the YAML file; otherwise PROVISIONER_CONFIG is used.
func WithConfigFile(path string) LoadOption {
	return func(l *loader) {
		l.configFile = strings.TrimSpace(path)
	}
}

type loader struct {
	lookup     LookupFunc
	envFiles   []string
	configFile string
}

// Load layers defaults < YAML file < environment and validates the result.
func Load(_ context.Context, options ...LoadOption) (Config, error) {
	l := &loader{
		lookup:   os.LookupEnv,
		envFiles: []string{".env"},
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}

	lookup, err := l.withDotenv()
	if err != nil {
		return Config{}, err
	}
	path := l.configFile
	if path == "" {
		path, _ = lookup(EnvConfigFile)
	}
	fileLayer, err := readYAML(strings.TrimSpace(path))
	if err != nil {
		return Config{}, err
	}
	envLayer, err := envToLayer(lookup)
	if err != nil {
		return Config{}, err
	}
	return Resolve(Defaults(), fileLayer, envLayer)
}

// Resolve merges raw layers over defaults through a go-options stack. Scopes
// have no default layer entry; an empty list falls back to
// shopify.DefaultScopes after the merge.
func Resolve(defaults Config, fileLayer, envLayer map[string]any) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("file", 10),
			nonNilLayer(fileLayer),
			opts.WithSnapshotID[map[string]any]("file"),
		),
		opts.NewLayer(
			opts.NewScope("environment", 20),
			nonNilLayer(envLayer),
			opts.WithSnapshotID[map[string]any]("environment"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("config: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("config: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	resolved.normalize()
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func (c *Config) normalize() {
	c.Credentials.Backend = strings.ToLower(strings.TrimSpace(c.Credentials.Backend))
	c.Shopify.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Shopify.DefaultCurrency))
	c.Shopify.APIVersion = strings.TrimSpace(c.Shopify.APIVersion)
	scopes := make([]string, 0, len(c.Shopify.Scopes))
	for _, scope := range c.Shopify.Scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		scopes = shopify.DefaultScopes()
	}
	c.Shopify.Scopes = scopes
}

func (l *loader) withDotenv() (LookupFunc, error) {
	values := map[string]string{}
	for _, path := range l.envFiles {
		read, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		for key, value := range read {
			if _, ok := values[key]; !ok {
				values[key] = value
			}
		}
	}
	base := l.lookup
	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

func readYAML(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return out, nil
}

type envBinding struct {
	key     string
	section string
	field   string
	kind    string
}

var envBindings = []envBinding{
	{key: "SERVICE_NAME", field: "service_name"},
	{key: "PORT", section: "http", field: "addr", kind: "port"},
	{key: "HTTP_ADDR", section: "http", field: "addr"},
	{key: "APP_URL", section: "http", field: "app_url"},
	{key: "SHOPIFY_API_KEY", section: "shopify", field: "client_id"},
	{key: "SHOPIFY_API_SECRET", section: "shopify", field: "client_secret"},
	{key: "SHOPIFY_API_VERSION", section: "shopify", field: "api_version"},
	{key: "SHOPIFY_SCOPES", section: "shopify", field: "scopes", kind: "list"},
	{key: "SHOP_NAME", section: "shopify", field: "shop_name"},
	{key: "SHOPIFY_ADMIN_TOKEN", section: "shopify", field: "admin_token"},
	{key: "DEFAULT_LOCATION_ID", section: "shopify", field: "default_location_id"},
	{key: "DEFAULT_CURRENCY", section: "shopify", field: "default_currency"},
	{key: "CREDENTIAL_BACKEND", section: "credentials", field: "backend"},
	{key: "TOKEN_STORE_PATH", section: "credentials", field: "token_store_path"},
	{key: "DATABASE_URL", section: "credentials", field: "database_url"},
	{key: "APP_KEY", section: "credentials", field: "app_key"},
	{key: "APP_KEY_PREVIOUS", section: "credentials", field: "previous_app_keys", kind: "list"},
	{key: "CREDENTIAL_CACHE_TTL_SECONDS", section: "credentials", field: "cache_ttl_seconds", kind: "int"},
	{key: "OAUTH_REQUIRE_STATE", section: "oauth", field: "require_state", kind: "bool"},
	{key: "OAUTH_REQUIRE_HMAC", section: "oauth", field: "require_hmac", kind: "bool"},
	{key: "REDIS_URL", section: "oauth", field: "redis_url"},
	{key: "OAUTH_STATE_TTL_SECONDS", section: "oauth", field: "state_ttl_seconds", kind: "int"},
	{key: "LOG_ENV", section: "log", field: "env"},
}

// envToLayer maps the environment onto the config tree. Later bindings win,
// so HTTP_ADDR overrides PORT.
func envToLayer(lookup LookupFunc) (map[string]any, error) {
	layer := map[string]any{}
	for _, binding := range envBindings {
		raw, ok := lookup(binding.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		raw = strings.TrimSpace(raw)
		var value any
		switch binding.kind {
		case "port":
			value = ":" + strings.TrimPrefix(raw, ":")
		case "list":
			value = splitList(raw)
		case "int":
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("config: %s must be an integer: %w", binding.key, err)
			}
			value = parsed
		case "bool":
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("config: %s must be a boolean: %w", binding.key, err)
			}
			value = parsed
		default:
			value = raw
		}
		if binding.section == "" {
			layer[binding.field] = value
			continue
		}
		section, _ := layer[binding.section].(map[string]any)
		if section == nil {
			section = map[string]any{}
			layer[binding.section] = section
		}
		section[binding.field] = value
	}
	return layer, nil
}

func splitList(raw string) []any {
	parts := strings.Split(raw, ",")
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configToLayerMap(cfg Config) map[string]any {
	return map[string]any{
		"service_name": cfg.ServiceName,
		"http": map[string]any{
			"addr":    cfg.HTTP.Addr,
			"app_url": cfg.HTTP.AppURL,
		},
		"shopify": map[string]any{
			"client_id":           cfg.Shopify.ClientID,
			"client_secret":       cfg.Shopify.ClientSecret,
			"api_version":         cfg.Shopify.APIVersion,
			"shop_name":           cfg.Shopify.ShopName,
			"admin_token":         cfg.Shopify.AdminToken,
			"default_location_id": cfg.Shopify.DefaultLocationID,
			"default_currency":    cfg.Shopify.DefaultCurrency,
		},
		"credentials": map[string]any{
			"backend":           cfg.Credentials.Backend,
			"token_store_path":  cfg.Credentials.TokenStorePath,
			"database_url":      cfg.Credentials.DatabaseURL,
			"app_key":           cfg.Credentials.AppKey,
			"cache_ttl_seconds": cfg.Credentials.CacheTTLSeconds,
		},
		"oauth": map[string]any{
			"require_state":     cfg.OAuth.RequireState,
			"require_hmac":      cfg.OAuth.RequireHMAC,
			"redis_url":         cfg.OAuth.RedisURL,
			"state_ttl_seconds": cfg.OAuth.StateTTLSeconds,
		},
		"log": map[string]any{
			"env": cfg.Log.Env,
		},
	}
}

func nonNilLayer(layer map[string]any) map[string]any {
	if layer == nil {
		return map[string]any{}
	}
	return layer
}
