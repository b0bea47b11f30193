package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-shopify-provisioner/adapters/gologger"
	"github.com/goliatone/go-shopify-provisioner/bootstrap"
	"github.com/goliatone/go-shopify-provisioner/config"
	"github.com/goliatone/go-shopify-provisioner/httpapi"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := gologger.New(cfg.Log.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap", "error", err)
	}
	defer func() { _ = app.Close() }()

	if tenant, imported, err := app.ImportAdminToken(ctx); err != nil {
		log.Warn("admin token import failed", "error", err)
	} else if imported {
		log.Info("admin token imported", "shop", tenant.String())
	}

	flow, err := app.InstallFlow(ctx)
	if err != nil {
		log.Fatal("install flow", "error", err)
	}
	processor, err := app.WebhookProcessor()
	if err != nil {
		log.Fatal("webhooks", "error", err)
	}

	router, err := httpapi.NewRouter(httpapi.Dependencies{
		Installer:   flow,
		Provisioner: app.Service,
		Tenants:     app.Credentials,
		Runs:        app.Runs,
		Webhooks:    processor,
		Logger:      app.Loggers.GetLogger("http"),
		Settings: httpapi.Settings{
			ShopName:          cfg.Shopify.ShopName,
			DefaultLocationID: cfg.Shopify.DefaultLocationID,
			DefaultCurrency:   cfg.Shopify.DefaultCurrency,
		},
	})
	if err != nil {
		log.Fatal("router", "error", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("provisioner listening",
			"addr", cfg.HTTP.Addr,
			"app_url", cfg.HTTP.AppURL,
			"credential_backend", cfg.Credentials.Backend,
			"api_version", cfg.Shopify.APIVersion,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("provisioner stopped")
}
