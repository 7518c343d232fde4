package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/xxxsen/common/database"
)

type postgresDBWrap struct {
	db *sql.DB
}

func newPostgres(dsn string) (database.IDatabase, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &postgresDBWrap{db: db}, nil
}

func (p *postgresDBWrap) OnTransation(ctx context.Context, cb database.OnTxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := cb(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *postgresDBWrap) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

func (p *postgresDBWrap) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

func (p *postgresDBWrap) Close() error {
	return p.db.Close()
}
