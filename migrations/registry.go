package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"

	provisioner "github.com/goliatone/go-shopify-provisioner"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	defaultRoot  = "data/sql/migrations"
	defaultLabel = "go-shopify-provisioner"
)

// Source is one dialect's migration directory. Versions lists the migration
// names without the .up.sql/.down.sql suffix, sorted.
type Source struct {
	Dialect  string
	Dir      string
	FS       fs.FS
	Versions []string
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Sources     []Source
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(r *Registration) {
		var next []string
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect != "" && !slices.Contains(next, dialect) {
				next = append(next, dialect)
			}
		}
		if len(next) > 0 {
			r.Dialects = next
		}
	}
}

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// Sources resolves the postgres files at the root of the migration tree and
// the sqlite files under sqlite/. Both dialects must carry the same versions
// and every up file needs a down file.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = provisioner.GetMigrationsFS()
	}
	base, err := fs.Sub(root, defaultRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", defaultRoot, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite migrations: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Dir: defaultRoot, FS: base},
		{Dialect: DialectSQLite, Dir: defaultRoot + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range sources {
		versions, err := pairedVersions(sources[i])
		if err != nil {
			return nil, err
		}
		sources[i].Versions = versions
	}
	if !slices.Equal(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf("migrations: postgres versions %v differ from sqlite versions %v",
			sources[0].Versions, sources[1].Versions)
	}
	return sources, nil
}

// Register hands each selected dialect's filesystem to registerFn, in the
// order the sources were resolved.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: defaultLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources(nil)
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, dialect := range reg.Dialects {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}
	for _, source := range sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Dir, err)
		}
	}
	return reg, nil
}

func pairedVersions(source Source) ([]string, error) {
	ups, err := fs.Glob(source.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", source.Dir, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Dir)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(source.FS, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s/%s has no down migration", source.Dir, up)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}
