package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/install"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBodyBytes = 1 << 20

// Installer is satisfied by install.Flow.
type Installer interface {
	Begin(ctx context.Context, shop string) (install.BeginResult, error)
	Complete(ctx context.Context, req install.CallbackRequest) (install.CompleteResult, error)
	Status(ctx context.Context, shop string) (core.InstallState, error)
}

// Provisioner is satisfied by saga.Service.
type Provisioner interface {
	Provision(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error)
	CreateProduct(ctx context.Context, tenant core.TenantID, req core.ProvisionRequest) (core.SagaResult, error)
}

// WebhookProcessor is satisfied by webhooks.Processor.
type WebhookProcessor interface {
	Process(ctx context.Context, delivery webhooks.Delivery) (webhooks.Result, error)
}

type TenantLister interface {
	List(ctx context.Context) ([]core.TenantID, error)
}

type Settings struct {
	ShopName          string
	DefaultLocationID string
	DefaultCurrency   string
}

type Dependencies struct {
	Installer   Installer
	Provisioner Provisioner
	Tenants     TenantLister
	Runs        core.RunReader
	Webhooks    WebhookProcessor
	Settings    Settings
	Logger      core.Logger
	// Metrics serves /metrics; promhttp.Handler() when nil.
	Metrics http.Handler
}

type handlers struct {
	installer   Installer
	provisioner Provisioner
	tenants     TenantLister
	runs        core.RunReader
	webhooks    WebhookProcessor
	settings    Settings
	logger      core.Logger
}

// NewRouter builds the chi router wrapped in otelhttp.
func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Installer == nil {
		return nil, fmt.Errorf("httpapi: installer is required")
	}
	if deps.Provisioner == nil {
		return nil, fmt.Errorf("httpapi: provisioner is required")
	}
	if deps.Tenants == nil {
		return nil, fmt.Errorf("httpapi: tenant lister is required")
	}
	h := &handlers{
		installer:   deps.Installer,
		provisioner: deps.Provisioner,
		tenants:     deps.Tenants,
		runs:        deps.Runs,
		webhooks:    deps.Webhooks,
		settings:    deps.Settings,
		logger:      glog.Ensure(deps.Logger),
	}
	h.settings.ShopName = strings.TrimSpace(h.settings.ShopName)
	h.settings.DefaultLocationID = strings.TrimSpace(h.settings.DefaultLocationID)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Recover(h.logger))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/", h.beginInstall)
		r.Get("/callback", h.completeInstall)
		r.Get("/status", h.installStatus)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/sync", h.createProduct)
		r.Post("/create-with-variant", h.provisionProduct)
	})
	if h.runs != nil {
		r.Get("/runs", h.listRuns)
	}
	if h.webhooks != nil {
		r.Post("/webhooks", h.receiveWebhook)
	}

	return otelhttp.NewHandler(r, "provisioner"), nil
}
