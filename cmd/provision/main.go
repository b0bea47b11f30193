// Command provision runs the provisioning saga and credential queries from
// the shell through the go-command dispatcher, using the same configuration
// as the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-command"
	provisioner "github.com/goliatone/go-shopify-provisioner"
	"github.com/goliatone/go-shopify-provisioner/adapters/gocommand"
	"github.com/goliatone/go-shopify-provisioner/adapters/gologger"
	"github.com/goliatone/go-shopify-provisioner/bootstrap"
	provcommand "github.com/goliatone/go-shopify-provisioner/command"
	"github.com/goliatone/go-shopify-provisioner/config"
	"github.com/goliatone/go-shopify-provisioner/core"
	provquery "github.com/goliatone/go-shopify-provisioner/query"
)

const usage = `usage: provision <command> [flags]

commands:
  product        create a product with a priced variant and stock
  create         create a bare product (step 1 only)
  import-token   store SHOPIFY_ADMIN_TOKEN or -token for a shop
  tenants        list shops with a stored credential
  runs           list recorded provisioning runs (database backends)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "provision: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, args []string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log, err := gologger.New(cfg.Log.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	facade, err := provisioner.NewFacade(provisioner.Dependencies{
		Provisioning: app.Service,
		Credentials:  app.Credentials,
		Runs:         app.Runs,
	})
	if err != nil {
		return err
	}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()
	if err := facade.Register(adapter); err != nil {
		return err
	}

	switch name {
	case "product":
		return runProduct(ctx, cfg, args)
	case "create":
		return runCreate(ctx, cfg, args)
	case "import-token":
		return runImportToken(ctx, cfg, args)
	case "tenants":
		tenants, err := gocommand.Query[provquery.ListTenantsMessage, []core.TenantID](ctx, provquery.ListTenantsMessage{})
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"tenants": tenants})
	case "runs":
		if app.Runs == nil {
			return fmt.Errorf("runs are recorded by the %s and %s backends only, current is %s",
				config.BackendSQLite, config.BackendPostgres, cfg.Credentials.Backend)
		}
		return runRuns(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func runProduct(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("product", flag.ExitOnError)
	shop := fs.String("shop", cfg.Shopify.ShopName, "Shop domain or handle")
	title := fs.String("title", "", "Product title")
	price := fs.String("price", "", "Variant price as a decimal string")
	sku := fs.String("sku", "", "Variant SKU")
	quantity := fs.Int("quantity", 0, "Stock delta to apply at the location")
	location := fs.String("location", cfg.Shopify.DefaultLocationID, "Inventory location GID")
	currency := fs.String("currency", cfg.Shopify.DefaultCurrency, "Currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := gocommand.Query[provcommand.ProvisionProductMessage, core.SagaResult](ctx, provcommand.ProvisionProductMessage{
		Shop: *shop,
		Request: core.ProvisionRequest{
			Title:        *title,
			Price:        *price,
			SKU:          *sku,
			Quantity:     *quantity,
			LocationID:   *location,
			CurrencyCode: *currency,
		},
	})
	if err != nil {
		return err
	}
	return printResult(result)
}

func runCreate(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	shop := fs.String("shop", cfg.Shopify.ShopName, "Shop domain or handle")
	title := fs.String("title", "", "Product title")
	sku := fs.String("sku", "", "Product SKU, used for logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := gocommand.Query[provcommand.CreateProductMessage, core.SagaResult](ctx, provcommand.CreateProductMessage{
		Shop:  *shop,
		Title: *title,
		SKU:   *sku,
	})
	if err != nil {
		return err
	}
	return printResult(result)
}

func runImportToken(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("import-token", flag.ExitOnError)
	shop := fs.String("shop", cfg.Shopify.ShopName, "Shop domain or handle")
	token := fs.String("token", cfg.Shopify.AdminToken, "Admin API access token")
	scope := fs.String("scope", "", "Granted scopes, comma separated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := gocommand.Dispatch(ctx, provcommand.PutCredentialMessage{
		Shop: *shop,
		Record: core.CredentialRecord{
			AccessToken: strings.TrimSpace(*token),
			Scope:       strings.TrimSpace(*scope),
		},
	}); err != nil {
		return err
	}
	tenant, _ := core.NormalizeTenantID(*shop)
	return printJSON(map[string]any{"status": "ok", "shop": tenant, "token": core.RedactToken(*token)})
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	shop := fs.String("shop", "", "Only runs for this shop")
	failedOnly := fs.Bool("failed", false, "Only failed runs")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	runs, err := gocommand.Query[provquery.ListRunsMessage, []core.ProvisioningRun](ctx, provquery.ListRunsMessage{
		Shop:       *shop,
		FailedOnly: *failedOnly,
		Limit:      *limit,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"runs": runs})
}

func printResult(result core.SagaResult) error {
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("failed at %s", result.FailedStep)
	}
	return nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
