package dedup

import (
	"context"
	"fmt"
)

// ReferenceMigrator repoints stored records from oldURL to newURL and returns
// how many records changed. An error means the old URL may still be referenced.
type ReferenceMigrator interface {
	Migrate(ctx context.Context, oldURL, newURL string) (int64, error)
}

// MigratorFunc adapts a function to ReferenceMigrator.
type MigratorFunc func(ctx context.Context, oldURL, newURL string) (int64, error)

func (f MigratorFunc) Migrate(ctx context.Context, oldURL, newURL string) (int64, error) {
	return f(ctx, oldURL, newURL)
}

// MultiMigrator runs several record stores in order. It stops at the first
// failure, which keeps the loser object alive; stores that already ran point
// at the winner, which stays live either way.
type MultiMigrator []ReferenceMigrator

func (m MultiMigrator) Migrate(ctx context.Context, oldURL, newURL string) (int64, error) {
	var total int64
	for i, mig := range m {
		n, err := mig.Migrate(ctx, oldURL, newURL)
		if err != nil {
			return total, fmt.Errorf("migrator %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}
