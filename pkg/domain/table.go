// Package domain defines the tabular registry model and the contracts shared
// between the sync engine and the authoritative backends it writes through to.
package domain

import (
	"fmt"
	"strconv"
)

// Key is the value of a row's sequence key column.
type Key string

// KeyFromInt formats an allocated sequence number as a Key.
func KeyFromInt(n int64) Key { return Key(strconv.FormatInt(n, 10)) }

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

// Int parses the key as a base-10 integer. ok is false for malformed keys.
func (k Key) Int() (n int64, ok bool) {
	n, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Row is one record, positionally aligned to a Schema.
type Row []string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return append(Row(nil), r...)
}

// Fields is a column-name keyed view of a row, used for mutation input and wire payloads.
type Fields map[string]string

// Clone returns a shallow copy of the mapping.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Schema is the fixed header of the registry table.
type Schema struct {
	Columns []string
	// KeyColumn names the sequence key column; it must appear in Columns.
	KeyColumn string
	// AppliedOnColumn optionally names a date column defaulted to today on create.
	AppliedOnColumn string
}

// Validate checks that column names are unique and the designated columns exist.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c == "" {
			return fmt.Errorf("schema has an empty column name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("schema column %q declared twice", c)
		}
		seen[c] = struct{}{}
	}
	if _, ok := seen[s.KeyColumn]; !ok {
		return fmt.Errorf("key column %q not in schema", s.KeyColumn)
	}
	if s.AppliedOnColumn != "" {
		if _, ok := seen[s.AppliedOnColumn]; !ok {
			return fmt.Errorf("applied-on column %q not in schema", s.AppliedOnColumn)
		}
	}
	return nil
}

// Index returns the position of column or -1.
func (s Schema) Index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// KeyOf extracts the sequence key from a row shaped by the schema.
func (s Schema) KeyOf(r Row) Key {
	idx := s.Index(s.KeyColumn)
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return Key(r[idx])
}

// RowFromFields builds a row positionally; absent columns become empty strings.
func (s Schema) RowFromFields(f Fields) Row {
	row := make(Row, len(s.Columns))
	for i, c := range s.Columns {
		row[i] = f[c]
	}
	return row
}

// FieldsFromRow is the inverse of RowFromFields.
func (s Schema) FieldsFromRow(r Row) Fields {
	out := make(Fields, len(s.Columns))
	for i, c := range s.Columns {
		if i < len(r) {
			out[c] = r[i]
		} else {
			out[c] = ""
		}
	}
	return out
}

// Table is a header plus ordered rows, as exchanged with backends.
type Table struct {
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
}

// Clone deep copies the table.
func (t Table) Clone() Table {
	out := Table{Header: append([]string(nil), t.Header...)}
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}
