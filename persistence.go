package session

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// PersistenceConfig is the slice of configuration the local store needs.
type PersistenceConfig interface {
	GetDSN() string
	GetDebug() bool
	GetDriver() string
	GetServer() string
	GetPingTimeout() time.Duration
	GetOtelIdentifier() string
}

// SetupPersistence opens the local sqlite database, registers models, and
// runs the embedded migrations. The returned DB backs the token store and
// the activity log.
func SetupPersistence(ctx context.Context, cfg PersistenceConfig) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open local session store")
	}

	persistence.RegisterModel((*TokenRecord)(nil))
	persistence.RegisterModel((*ActivityRecord)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize persistence client")
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load embedded migrations")
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration dialect validation failed")
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}

	return client.DB(), nil
}
