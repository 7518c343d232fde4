package db

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/database"
	"github.com/xxxsen/common/database/sqlite"

	appconfig "github.com/xxxsen/storeaudit/internal/config"
)

var defaultCatalog *Catalog

// SetDefault assigns the global reference catalog.
func SetDefault(c *Catalog) {
	defaultCatalog = c
}

// Default returns the global reference catalog, nil until a command that
// needs the record database has opened it.
func Default() *Catalog {
	return defaultCatalog
}

// Open connects to the record database described by cfg and checks it is
// reachable.
func Open(ctx context.Context, cfg appconfig.DatabaseConfig) (database.IDatabase, error) {
	var (
		db  database.IDatabase
		err error
	)
	switch cfg.Driver {
	case appconfig.DriverSQLite:
		db, err = sqlite.New(cfg.DSN)
	case appconfig.DriverPostgres:
		db, err = newPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func ping(ctx context.Context, db database.IQueryer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rows, err := db.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	defer rows.Close()
	return rows.Err()
}
