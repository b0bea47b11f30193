package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-shopify-provisioner/config"
	provisionermigrations "github.com/goliatone/go-shopify-provisioner/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver  string
	server  string
	debug   bool
	service string
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return c.service
}

// openPersistence opens the configured database, registers the embedded
// migrations for its dialect and applies them.
func openPersistence(ctx context.Context, cfg config.Config) (*persistence.Client, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Credentials.Backend))
	dsn := cfg.DatabaseDSN()

	var (
		driver      string
		dialectName string
		dialect     schema.Dialect
	)
	switch backend {
	case config.BackendSQLite:
		driver, dialectName, dialect = "sqlite3", provisionermigrations.DialectSQLite, sqlitedialect.New()
	case config.BackendPostgres:
		driver, dialectName, dialect = "postgres", provisionermigrations.DialectPostgres, pgdialect.New()
	default:
		return nil, fmt.Errorf("bootstrap: backend %q has no database", backend)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open %s: %w", backend, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver:  driver,
		server:  dsn,
		debug:   cfg.Log.Env != "prod" && cfg.Log.Env != "production",
		service: cfg.ServiceName,
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: persistence client: %w", err)
	}

	_, err = provisionermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != dialectName {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, provisionermigrations.WithValidationTargets(dialectName))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bootstrap: migrate: %w", err)
	}
	return client, nil
}
