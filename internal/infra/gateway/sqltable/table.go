// Package sqltable stores registry rows in a single SQL table keyed by sequence key, with
// every row's cells held as a JSON object. It is shared by the sqlite and postgres
// gateways, which differ only in driver and placeholder style.
package sqltable

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"applicantsync/pkg/domain"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "registry_rows"

// Dialect selects the bind placeholder syntax.
type Dialect int

const (
	// SQLite binds with '?'.
	SQLite Dialect = iota
	// Postgres binds with '$n'.
	Postgres
)

func (d Dialect) bind(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Table implements domain.Gateway over db.
type Table struct {
	db      *sql.DB
	dialect Dialect
	name    string
	schema  domain.Schema

	insertSQL, existsSQL, updateSQL, deleteSQL, selectSQL string
}

var _ domain.Gateway = (*Table)(nil)

// Open ensures the backing table exists and returns a gateway over it.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, name string, schema domain.Schema) (*Table, error) {
	if name == "" {
		name = DefaultTable
	}
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	t := &Table{db: db, dialect: dialect, name: name, schema: schema}
	t.insertSQL = fmt.Sprintf("INSERT INTO %s (seq_key, payload) VALUES (%s, %s)", name, dialect.bind(1), dialect.bind(2))
	t.existsSQL = fmt.Sprintf("SELECT seq_key FROM %s WHERE seq_key = %s", name, dialect.bind(1))
	t.updateSQL = fmt.Sprintf("UPDATE %s SET payload = %s WHERE seq_key = %s", name, dialect.bind(1), dialect.bind(2))
	t.deleteSQL = fmt.Sprintf("DELETE FROM %s WHERE seq_key = %s", name, dialect.bind(1))
	t.selectSQL = fmt.Sprintf("SELECT seq_key, payload FROM %s", name)

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`, name)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create %s table: %w", name, err)
	}
	return t, nil
}

// DB exposes the underlying handle.
func (t *Table) DB() *sql.DB { return t.db }

// Save implements domain.Gateway.
func (t *Table) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) (retErr error) {
	if key == "" {
		return errors.New("save: empty key")
	}
	cells := t.schema.FieldsFromRow(t.schema.RowFromFields(record))
	cells[t.schema.KeyColumn] = string(key)
	payload, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encode row %s: %w", key, err)
	}

	if update {
		res, err := t.db.ExecContext(ctx, t.updateSQL, string(payload), string(key))
		if err != nil {
			return fmt.Errorf("update row %s: %w", key, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.KeyError{Key: key, Err: domain.ErrNotFound}
		}
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	rows, err := tx.QueryContext(ctx, t.existsSQL, string(key))
	if err != nil {
		return fmt.Errorf("check row %s: %w", key, err)
	}
	exists := rows.Next()
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return fmt.Errorf("check row %s: %w", key, err)
	}
	if exists {
		return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
	}
	if _, err := tx.ExecContext(ctx, t.insertSQL, string(key), string(payload)); err != nil {
		return fmt.Errorf("insert row %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Delete implements domain.Gateway. Deleting an absent key is a no-op.
func (t *Table) Delete(ctx context.Context, key domain.Key) error {
	if _, err := t.db.ExecContext(ctx, t.deleteSQL, string(key)); err != nil {
		return fmt.Errorf("delete row %s: %w", key, err)
	}
	return nil
}

// FetchStateHash implements domain.Gateway by hashing a full fetch.
func (t *Table) FetchStateHash(ctx context.Context) (domain.StateHash, error) {
	table, err := t.FetchAll(ctx)
	if err != nil {
		return "", err
	}
	return domain.HashTable(table), nil
}

// FetchAll implements domain.Gateway. Rows come back ordered by numeric key, with
// non-numeric keys after them in lexical order.
func (t *Table) FetchAll(ctx context.Context) (domain.Table, error) {
	rows, err := t.db.QueryContext(ctx, t.selectSQL)
	if err != nil {
		return domain.Table{}, fmt.Errorf("select %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	type keyed struct {
		key domain.Key
		row domain.Row
	}
	var out []keyed
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return domain.Table{}, fmt.Errorf("scan: %w", err)
		}
		var cells domain.Fields
		if err := json.Unmarshal([]byte(payload), &cells); err != nil {
			return domain.Table{}, fmt.Errorf("decode row %s: %w", key, err)
		}
		if cells == nil {
			cells = domain.Fields{}
		}
		cells[t.schema.KeyColumn] = key
		out = append(out, keyed{key: domain.Key(key), row: t.schema.RowFromFields(cells)})
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	slices.SortFunc(out, func(a, b keyed) int { return compareKeys(a.key, b.key) })

	table := domain.Table{Header: slices.Clone(t.schema.Columns), Rows: make([]domain.Row, 0, len(out))}
	for _, k := range out {
		table.Rows = append(table.Rows, k.row)
	}
	return table, nil
}

func compareKeys(a, b domain.Key) int {
	an, aok := a.Int()
	bn, bok := b.Int()
	switch {
	case aok && bok:
		return cmp.Compare(an, bn)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
