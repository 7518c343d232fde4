package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/database"

	appconfig "github.com/xxxsen/storeaudit/internal/config"
)

// Catalog is the record database split into one ReferenceStore per domain.
// Stores share the connection, each migrates in its own transaction.
type Catalog struct {
	db     database.IDatabase
	stores []*ReferenceStore
}

// NewCatalog groups targets by domain, keeping the order in which each
// domain first appears.
func NewCatalog(db database.IDatabase, driver string, targets []appconfig.ReferenceTarget) (*Catalog, error) {
	if len(targets) == 0 {
		return nil, errors.New("reference catalog needs at least one target")
	}
	var order []string
	byDomain := make(map[string][]appconfig.ReferenceTarget)
	for _, t := range targets {
		d := t.DomainName()
		if _, ok := byDomain[d]; !ok {
			order = append(order, d)
		}
		byDomain[d] = append(byDomain[d], t)
	}
	c := &Catalog{db: db}
	for _, d := range order {
		store, err := NewReferenceStore(db, driver, d, byDomain[d])
		if err != nil {
			return nil, err
		}
		c.stores = append(c.stores, store)
	}
	return c, nil
}

// OpenCatalog opens the database of cfg and builds the stores of its targets.
func OpenCatalog(ctx context.Context, cfg appconfig.DatabaseConfig) (*Catalog, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := NewCatalog(db, cfg.Driver, cfg.References)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Stores returns the per domain stores in configuration order.
func (c *Catalog) Stores() []*ReferenceStore {
	return c.stores
}

// CountReferences returns, for each url that is referenced at least once,
// the number of stored references across all domains.
func (c *Catalog) CountReferences(ctx context.Context, urls []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, s := range c.stores {
		if err := s.CountReferences(ctx, urls, counts); err != nil {
			return nil, fmt.Errorf("count %s references: %w", s.Domain(), err)
		}
	}
	return counts, nil
}

// Close releases the shared connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
