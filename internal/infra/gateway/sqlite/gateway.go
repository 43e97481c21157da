// Package sqlite provides an embedded authoritative registry backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"applicantsync/internal/infra/gateway/sqltable"
	"applicantsync/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "applicantsync.db"

// Gateway persists registry rows to a local SQLite database.
type Gateway struct {
	*sqltable.Table
	path string
}

var _ domain.Gateway = (*Gateway)(nil)

// Open creates parent directories as needed, opens path and ensures the rows table.
func Open(ctx context.Context, path string, schema domain.Schema) (*Gateway, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; concurrent dispatches queue on the pool instead of getting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	table, err := sqltable.Open(ctx, db, sqltable.SQLite, sqltable.DefaultTable, schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Gateway{Table: table, path: path}, nil
}

// Path returns the database file location.
func (g *Gateway) Path() string { return g.path }

// Close releases the database handle.
func (g *Gateway) Close() error { return g.DB().Close() }
