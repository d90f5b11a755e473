// Package storage opens the profile store through go-persistence-bun and
// applies the embedded dialect migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-logger/glog"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Options controls Open
type Options struct {
	// Migrate applies the pending "up" migrations.
	Migrate bool
	// Logger receives the persistence client logs. Optional.
	Logger glog.Logger
}

func init() {
	persistence.RegisterModel((*accounts.ProfileRecord)(nil))
}

// Open builds a persistence client on top of sqldb, registers the
// migrations for every supported dialect and returns the bun handle.
func Open(ctx context.Context, cfg persistence.Config, sqldb *sql.DB, dialect schema.Dialect, opts Options) (*bun.DB, error) {
	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		return nil, accounts.WrapError(err, accounts.KindStore, "unable to create persistence client")
	}

	if opts.Logger != nil {
		client.SetLogger(opts.Logger)
	}

	migrationsFS, err := accounts.MigrationsFS()
	if err != nil {
		return nil, accounts.WrapError(err, accounts.KindStore, "unable to read migrations")
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(accounts.MigrationsDir),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, accounts.WrapError(err, accounts.KindStore, "dialect migrations are incomplete")
	}

	if opts.Migrate {
		if err := client.Migrate(ctx); err != nil {
			return nil, accounts.WrapError(err, accounts.KindStore, fmt.Sprintf("migrate %s", dialect.Name()))
		}
		if report := client.Report(); report != nil && !report.IsZero() && opts.Logger != nil {
			opts.Logger.Info("migrations applied", "report", report.String())
		}
	}

	return client.DB(), nil
}
