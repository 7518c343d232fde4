package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/xxxsen/common/database"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appconfig "github.com/xxxsen/storeaudit/internal/config"
)

// ReferenceStore rewrites object URLs stored in the columns of one record
// domain. It satisfies dedup.ReferenceMigrator.
type ReferenceStore struct {
	db      database.IDatabase
	driver  string
	domain  string
	targets []appconfig.ReferenceTarget
}

// NewReferenceStore builds the store of one domain over an open database.
// Target identifiers must have been validated by the config loader.
func NewReferenceStore(db database.IDatabase, driver, domain string, targets []appconfig.ReferenceTarget) (*ReferenceStore, error) {
	if db == nil {
		return nil, errors.New("reference store needs a database")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("reference store %s needs at least one target", domain)
	}
	for _, t := range targets {
		if t.Array && driver != appconfig.DriverPostgres {
			return nil, fmt.Errorf("array target %s.%s requires postgres", t.Table, t.Column)
		}
	}
	return &ReferenceStore{db: db, driver: driver, domain: domain, targets: targets}, nil
}

// Domain returns the record domain the store migrates.
func (s *ReferenceStore) Domain() string { return s.domain }

// Migrate replaces oldURL by newURL in every target of the domain within one
// transaction and returns the number of rows changed. Either all targets are
// updated or none is.
func (s *ReferenceStore) Migrate(ctx context.Context, oldURL, newURL string) (int64, error) {
	if oldURL == "" || newURL == "" {
		return 0, errors.New("migrate needs both urls")
	}
	if oldURL == newURL {
		return 0, nil
	}
	var total int64
	err := s.db.OnTransation(ctx, func(ctx context.Context, qe database.IQueryExecer) error {
		for _, t := range s.targets {
			query, args, err := s.buildUpdate(t, oldURL, newURL)
			if err != nil {
				return fmt.Errorf("build update %s.%s: %w", t.Table, t.Column, err)
			}
			res, err := qe.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update %s.%s: %w", t.Table, t.Column, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected %s.%s: %w", t.Table, t.Column, err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("migrate %s references: %w", s.domain, err)
	}
	logutil.GetLogger(ctx).Debug("references migrated",
		zap.String("domain", s.domain),
		zap.String("old", oldURL), zap.String("new", newURL), zap.Int64("rows", total))
	return total, nil
}

func (s *ReferenceStore) buildUpdate(t appconfig.ReferenceTarget, oldURL, newURL string) (string, []interface{}, error) {
	if s.driver == appconfig.DriverPostgres {
		if t.Array {
			query := fmt.Sprintf(`UPDATE %s SET %s = array_replace(%s, $1, $2) WHERE $1 = ANY(%s)`,
				pq.QuoteIdentifier(t.Table), pq.QuoteIdentifier(t.Column),
				pq.QuoteIdentifier(t.Column), pq.QuoteIdentifier(t.Column))
			return query, []interface{}{oldURL, newURL}, nil
		}
		query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`,
			pq.QuoteIdentifier(t.Table), pq.QuoteIdentifier(t.Column), pq.QuoteIdentifier(t.Column))
		return query, []interface{}{newURL, oldURL}, nil
	}
	where := map[string]interface{}{t.Column: oldURL}
	update := map[string]interface{}{t.Column: newURL}
	return builder.BuildUpdate(t.Table, where, update)
}

// CountReferences adds, for each url referenced by the domain, the number of
// stored references to counts.
func (s *ReferenceStore) CountReferences(ctx context.Context, urls []string, counts map[string]int64) error {
	if len(urls) == 0 {
		return nil
	}
	for _, t := range s.targets {
		query, args, err := s.buildFind(t, urls)
		if err != nil {
			return fmt.Errorf("build select %s.%s: %w", t.Table, t.Column, err)
		}
		if err := s.scanURLs(ctx, query, args, counts); err != nil {
			return fmt.Errorf("select %s.%s: %w", t.Table, t.Column, err)
		}
	}
	return nil
}

func (s *ReferenceStore) buildFind(t appconfig.ReferenceTarget, urls []string) (string, []interface{}, error) {
	if s.driver == appconfig.DriverPostgres {
		if t.Array {
			query := fmt.Sprintf(`SELECT u FROM %s, unnest(%s) AS u WHERE u = ANY($1)`,
				pq.QuoteIdentifier(t.Table), pq.QuoteIdentifier(t.Column))
			return query, []interface{}{pq.Array(urls)}, nil
		}
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ANY($1)`,
			pq.QuoteIdentifier(t.Column), pq.QuoteIdentifier(t.Table), pq.QuoteIdentifier(t.Column))
		return query, []interface{}{pq.Array(urls)}, nil
	}
	in := make([]interface{}, 0, len(urls))
	for _, u := range urls {
		in = append(in, u)
	}
	where := map[string]interface{}{t.Column + " in": in}
	return builder.BuildSelect(t.Table, where, []string{t.Column})
}

func (s *ReferenceStore) scanURLs(ctx context.Context, query string, args []interface{}, counts map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var u sql.NullString
		if err := rows.Scan(&u); err != nil {
			return err
		}
		if u.Valid {
			counts[u.String]++
		}
	}
	return rows.Err()
}
