package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-shopify-provisioner/adapters/gologger"
	"github.com/goliatone/go-shopify-provisioner/config"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/credentials"
	"github.com/goliatone/go-shopify-provisioner/install"
	"github.com/goliatone/go-shopify-provisioner/metrics"
	"github.com/goliatone/go-shopify-provisioner/providers/shopify"
	"github.com/goliatone/go-shopify-provisioner/ratelimit"
	"github.com/goliatone/go-shopify-provisioner/saga"
	"github.com/goliatone/go-shopify-provisioner/security"
	sqlstore "github.com/goliatone/go-shopify-provisioner/store/sql"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const outboundTimeout = 30 * time.Second

type Option func(*App)

// WithRegisterer sets where metrics are registered. Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(a *App) {
		if registerer != nil {
			a.registerer = registerer
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *App) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// App holds the wired dependencies shared by the server and the CLI.
type App struct {
	Config      config.Config
	Logger      *gologger.Logger
	Loggers     *gologger.Provider
	Metrics     *metrics.Recorder
	Credentials core.CredentialStore
	// Runs is nil for the file backend; runs are only kept in a database.
	Runs        core.RunReader
	Clients     core.ClientFactory
	Service     *saga.Service

	registerer prometheus.Registerer
	httpClient *http.Client
	deliveries webhooks.DeliveryLedger
	throttle   ratelimit.StateStore
	closers    []func() error
}

// New builds the credential backend, the Admin API client factory and the
// saga service from cfg.
func New(ctx context.Context, cfg config.Config, logger *gologger.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("bootstrap: logger is required")
	}
	app := &App{
		Config:     cfg,
		Logger:     logger,
		Loggers:    gologger.NewProvider(logger),
		registerer: prometheus.DefaultRegisterer,
		httpClient: &http.Client{
			Timeout:   outboundTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		deliveries: webhooks.NewMemoryLedger(0),
		throttle:   ratelimit.NewMemoryStateStore(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.Metrics = metrics.NewRecorder(app.registerer)

	if err := app.buildCredentials(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Clients = shopify.NewClientFactory(app.Credentials,
		shopify.WithHTTPClient(app.httpClient),
		shopify.WithLogger(app.Loggers.GetLogger("shopify")),
		shopify.WithThrottle(ratelimit.NewAdaptivePolicy(app.throttle)),
	)

	serviceOpts := []saga.ServiceOption{
		saga.WithServiceObserver(app.observer("provision", "saga")),
	}
	if recorder, ok := app.Runs.(core.RunRecorder); ok {
		serviceOpts = append(serviceOpts, saga.WithRecorder(recorder))
	}
	service, err := saga.NewService(app.Clients, saga.New(saga.WithObserver(app.observer("saga", "saga"))), serviceOpts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Service = service
	return app, nil
}

func (a *App) observer(prefix, loggerName string) *core.Observer {
	return core.NewObserver(prefix, a.Loggers.GetLogger(loggerName), a.Metrics)
}

func (a *App) buildCredentials(ctx context.Context) error {
	cfg := a.Config
	var secrets core.SecretProvider
	if key := strings.TrimSpace(cfg.Credentials.AppKey); key != "" {
		ring, err := security.NewKeyringFromStrings(key, cfg.Credentials.PreviousAppKeys)
		if err != nil {
			return fmt.Errorf("bootstrap: app key: %w", err)
		}
		secrets = ring
	}

	var base core.CredentialStore
	switch strings.ToLower(strings.TrimSpace(cfg.Credentials.Backend)) {
	case config.BackendSQLite, config.BackendPostgres:
		client, err := openPersistence(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)

		storeOpts := []sqlstore.CredentialStoreOption{sqlstore.WithLogger(a.Loggers.GetLogger("credentials"))}
		if secrets != nil {
			storeOpts = append(storeOpts, sqlstore.WithSecretProvider(secrets))
		}
		factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, storeOpts...)
		if err != nil {
			return err
		}
		base = factory.CredentialStore()
		a.Runs = factory.ProvisioningRunStore()
		a.deliveries = factory.WebhookDeliveryStore()
		a.throttle = factory.ThrottleStateStore()
	default:
		fileOpts := []credentials.FileStoreOption{credentials.WithLogger(a.Loggers.GetLogger("credentials"))}
		if secrets != nil {
			fileOpts = append(fileOpts, credentials.WithSecretProvider(secrets))
		}
		base = credentials.NewFileStore(cfg.Credentials.TokenStorePath, fileOpts...)
	}

	if ttl := cfg.CacheTTL(); ttl > 0 {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = ttl
		cacheService, err := repositorycache.NewCacheService(cacheCfg)
		if err != nil {
			return fmt.Errorf("bootstrap: credential cache: %w", err)
		}
		cached, err := credentials.NewCachedStore(base, cacheService)
		if err != nil {
			return err
		}
		a.Credentials = cached
		return nil
	}
	a.Credentials = base
	return nil
}

// InstallFlow builds the OAuth install flow. It needs the app client
// credentials, so only the server calls it.
func (a *App) InstallFlow(ctx context.Context) (*install.Flow, error) {
	cfg := a.Config
	if err := cfg.ValidateInstall(); err != nil {
		return nil, err
	}
	provider, err := shopify.New(shopify.Config{
		ClientID:     cfg.Shopify.ClientID,
		ClientSecret: cfg.Shopify.ClientSecret,
		Scopes:       cfg.Shopify.Scopes,
		HTTPClient:   a.httpClient,
	})
	if err != nil {
		return nil, err
	}

	states, err := a.stateStore(ctx)
	if err != nil {
		return nil, err
	}

	return install.NewFlow(install.Config{
		RedirectURI:  cfg.CallbackURL(),
		RequireState: cfg.OAuth.RequireState,
		RequireHMAC:  cfg.OAuth.RequireHMAC,
	}, provider, provider, a.Credentials,
		install.WithStateStore(states),
		install.WithCallbackVerifier(shopify.CallbackVerifier{Secret: cfg.Shopify.ClientSecret}),
		install.WithObserver(a.observer("install", "install")),
	)
}

// WebhookProcessor verifies app webhooks with the client secret and drops a
// shop's credential on app/uninstalled.
func (a *App) WebhookProcessor() (*webhooks.Processor, error) {
	secret := strings.TrimSpace(a.Config.Shopify.ClientSecret)
	if secret == "" {
		return nil, fmt.Errorf("bootstrap: webhooks need the app client secret")
	}
	processor, err := webhooks.NewProcessor(shopify.WebhookVerifier{Secret: secret}, a.deliveries,
		webhooks.WithObserver(a.observer("webhook", "webhooks")),
	)
	if err != nil {
		return nil, err
	}
	if err := processor.Register(webhooks.TopicAppUninstalled, webhooks.UninstallHandler(a.Credentials)); err != nil {
		return nil, err
	}
	return processor, nil
}

func (a *App) stateStore(ctx context.Context) (core.OAuthStateStore, error) {
	redisURL := strings.TrimSpace(a.Config.OAuth.RedisURL)
	if redisURL == "" {
		return core.NewMemoryOAuthStateStore(a.Config.StateTTL()), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bootstrap: redis ping: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return install.NewRedisStateStore(client, a.Config.StateTTL())
}

// ImportAdminToken stores a configured admin token for the configured shop,
// mirroring a manual install.
func (a *App) ImportAdminToken(ctx context.Context) (core.TenantID, bool, error) {
	token := strings.TrimSpace(a.Config.Shopify.AdminToken)
	shop := strings.TrimSpace(a.Config.Shopify.ShopName)
	if token == "" || shop == "" {
		return "", false, nil
	}
	tenant, err := core.NormalizeTenantID(shop)
	if err != nil {
		return "", false, err
	}
	if err := a.Credentials.Put(ctx, tenant, core.CredentialRecord{
		AccessToken: token,
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		return "", false, err
	}
	return tenant, true, nil
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
