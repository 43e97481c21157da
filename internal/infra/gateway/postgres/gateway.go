// Package postgres provides a server-side authoritative registry backed by Postgres.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"applicantsync/internal/infra/gateway/sqltable"
	"applicantsync/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/applicantsync?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Gateway persists registry rows to Postgres.
type Gateway struct {
	*sqltable.Table
}

var _ domain.Gateway = (*Gateway)(nil)

// Open connects using dsn (falls back to defaultDSN), pings and ensures the rows table.
func Open(ctx context.Context, dsn string, schema domain.Schema) (*Gateway, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	table, err := sqltable.Open(ctx, db, sqltable.Postgres, sqltable.DefaultTable, schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Gateway{Table: table}, nil
}

// Close releases the connection pool.
func (g *Gateway) Close() error { return g.DB().Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
