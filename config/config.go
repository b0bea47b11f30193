package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	DefaultSQLiteDSN = "file:provisioner.db?cache=shared&_foreign_keys=on"
)

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig        `koanf:"http" mapstructure:"http"`
	Shopify     ShopifyConfig     `koanf:"shopify" mapstructure:"shopify"`
	Credentials CredentialsConfig `koanf:"credentials" mapstructure:"credentials"`
	OAuth       OAuthConfig       `koanf:"oauth" mapstructure:"oauth"`
	Log         LogConfig         `koanf:"log" mapstructure:"log"`
}

type HTTPConfig struct {
	Addr   string `koanf:"addr" mapstructure:"addr"`
	AppURL string `koanf:"app_url" mapstructure:"app_url"`
}

type ShopifyConfig struct {
	ClientID          string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret      string   `koanf:"client_secret" mapstructure:"client_secret"`
	APIVersion        string   `koanf:"api_version" mapstructure:"api_version"`
	Scopes            []string `koanf:"scopes" mapstructure:"scopes"`
	ShopName          string   `koanf:"shop_name" mapstructure:"shop_name"`
	AdminToken        string   `koanf:"admin_token" mapstructure:"admin_token"`
	DefaultLocationID string   `koanf:"default_location_id" mapstructure:"default_location_id"`
	DefaultCurrency   string   `koanf:"default_currency" mapstructure:"default_currency"`
}

type CredentialsConfig struct {
	Backend         string   `koanf:"backend" mapstructure:"backend"`
	TokenStorePath  string   `koanf:"token_store_path" mapstructure:"token_store_path"`
	DatabaseURL     string   `koanf:"database_url" mapstructure:"database_url"`
	AppKey          string   `koanf:"app_key" mapstructure:"app_key"`
	// PreviousAppKeys are retired keys, newest first. They only decrypt.
	PreviousAppKeys []string `koanf:"previous_app_keys" mapstructure:"previous_app_keys"`
	CacheTTLSeconds int      `koanf:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

type OAuthConfig struct {
	RequireState    bool   `koanf:"require_state" mapstructure:"require_state"`
	RequireHMAC     bool   `koanf:"require_hmac" mapstructure:"require_hmac"`
	RedisURL        string `koanf:"redis_url" mapstructure:"redis_url"`
	StateTTLSeconds int    `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
}

type LogConfig struct {
	Env string `koanf:"env" mapstructure:"env"`
}

func Defaults() Config {
	return Config{
		ServiceName: "go-shopify-provisioner",
		HTTP: HTTPConfig{
			Addr:   ":3000",
			AppURL: "http://localhost:3000",
		},
		Shopify: ShopifyConfig{
			APIVersion:      shopify.APIVersion,
			DefaultCurrency: core.DefaultCurrencyCode,
		},
		Credentials: CredentialsConfig{
			Backend:         BackendFile,
			TokenStorePath:  ".token/token_store.json",
			CacheTTLSeconds: 300,
		},
		OAuth: OAuthConfig{
			StateTTLSeconds: int(core.DefaultOAuthStateTTL / time.Second),
		},
		Log: LogConfig{Env: "dev"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("config: service_name is required")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("config: http.addr is required")
	}
	if version := strings.TrimSpace(c.Shopify.APIVersion); version != shopify.APIVersion {
		return fmt.Errorf("config: shopify.api_version %q is not supported, this build speaks %q", version, shopify.APIVersion)
	}
	if currency := strings.TrimSpace(c.Shopify.DefaultCurrency); len(currency) != 3 {
		return fmt.Errorf("config: shopify.default_currency must be a 3-letter code")
	}
	switch strings.ToLower(strings.TrimSpace(c.Credentials.Backend)) {
	case BackendFile:
	case BackendSQLite:
	case BackendPostgres:
		if strings.TrimSpace(c.Credentials.DatabaseURL) == "" {
			return fmt.Errorf("config: credentials.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown credentials.backend %q", c.Credentials.Backend)
	}
	if len(c.Credentials.PreviousAppKeys) > 0 && strings.TrimSpace(c.Credentials.AppKey) == "" {
		return fmt.Errorf("config: credentials.previous_app_keys needs credentials.app_key")
	}
	if c.Credentials.CacheTTLSeconds < 0 {
		return fmt.Errorf("config: credentials.cache_ttl_seconds must be >= 0")
	}
	if c.OAuth.StateTTLSeconds < 0 {
		return fmt.Errorf("config: oauth.state_ttl_seconds must be >= 0")
	}
	if c.OAuth.RequireHMAC && strings.TrimSpace(c.Shopify.ClientSecret) == "" {
		return fmt.Errorf("config: oauth.require_hmac needs shopify.client_secret")
	}
	return nil
}

// ValidateInstall checks the fields the OAuth install needs. The provision
// CLI can run without them.
func (c Config) ValidateInstall() error {
	if strings.TrimSpace(c.Shopify.ClientID) == "" {
		return fmt.Errorf("config: shopify.client_id (SHOPIFY_API_KEY) is required")
	}
	if strings.TrimSpace(c.Shopify.ClientSecret) == "" {
		return fmt.Errorf("config: shopify.client_secret (SHOPIFY_API_SECRET) is required")
	}
	if strings.TrimSpace(c.HTTP.AppURL) == "" {
		return fmt.Errorf("config: http.app_url (APP_URL) is required")
	}
	return nil
}

func (c Config) CallbackURL() string {
	return strings.TrimRight(strings.TrimSpace(c.HTTP.AppURL), "/") + "/auth/callback"
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Credentials.CacheTTLSeconds) * time.Second
}

func (c Config) StateTTL() time.Duration {
	return time.Duration(c.OAuth.StateTTLSeconds) * time.Second
}

// DatabaseDSN returns the configured DSN, or the local SQLite file when the
// sqlite backend has none.
func (c Config) DatabaseDSN() string {
	dsn := strings.TrimSpace(c.Credentials.DatabaseURL)
	if dsn == "" && strings.EqualFold(strings.TrimSpace(c.Credentials.Backend), BackendSQLite) {
		return DefaultSQLiteDSN
	}
	return dsn
}
