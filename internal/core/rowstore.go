package core

import (
	"fmt"
	"slices"
	"sync"

	"applicantsync/pkg/domain"
)

// RowStore is the in-memory mirror of the registry table. The coordinator is its only
// writer; any number of readers may take snapshots between mutations.
type RowStore struct {
	mu     sync.RWMutex
	schema domain.Schema
	keyIdx int
	rows   []domain.Row
	index  map[domain.Key]int
}

// NewRowStore constructs an empty store for schema.
func NewRowStore(schema domain.Schema) (*RowStore, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("row store: %w", err)
	}
	schema.Columns = append([]string(nil), schema.Columns...)
	return &RowStore{
		schema: schema,
		keyIdx: schema.Index(schema.KeyColumn),
		index:  make(map[domain.Key]int),
	}, nil
}

// Schema returns the fixed header description.
func (s *RowStore) Schema() domain.Schema {
	out := s.schema
	out.Columns = append([]string(nil), s.schema.Columns...)
	return out
}

// All returns a snapshot of the rows in order.
func (s *RowStore) All() []domain.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out
}

// Table returns the header plus a snapshot of the rows.
func (s *RowStore) Table() domain.Table {
	return domain.Table{Header: append([]string(nil), s.schema.Columns...), Rows: s.All()}
}

// Len reports the number of rows.
func (s *RowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Find returns a copy of the row carrying key.
func (s *RowStore) Find(key domain.Key) (domain.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.rows[idx].Clone(), true
}

// Append adds row at the end. It rejects rows of the wrong width, rows without a key
// and keys already present.
func (s *RowStore) Append(row domain.Row) error {
	if err := s.checkShape(row); err != nil {
		return err
	}
	key := domain.Key(row[s.keyIdx])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[key]; exists {
		return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
	}
	s.rows = append(s.rows, row.Clone())
	s.index[key] = len(s.rows) - 1
	return nil
}

// Replace overwrites the row carrying key in place. The replacement must keep the key.
func (s *RowStore) Replace(key domain.Key, row domain.Row) error {
	if err := s.checkShape(row); err != nil {
		return err
	}
	if got := domain.Key(row[s.keyIdx]); got != key {
		return fmt.Errorf("replace %s: row carries key %s: %w", key, got, domain.ErrRowShape)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[key]
	if !ok {
		return domain.KeyError{Key: key, Err: domain.ErrNotFound}
	}
	s.rows[idx] = row.Clone()
	return nil
}

// RemoveByKey drops the row carrying key and reports whether one was present.
func (s *RowStore) RemoveByKey(key domain.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[key]
	if !ok {
		return false
	}
	s.rows = slices.Delete(s.rows, idx, idx+1)
	s.reindexLocked()
	return true
}

// InsertAt puts row at position idx, clamped to the current bounds.
func (s *RowStore) InsertAt(idx int, row domain.Row) error {
	if err := s.checkShape(row); err != nil {
		return err
	}
	key := domain.Key(row[s.keyIdx])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[key]; exists {
		return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
	}
	idx = max(0, min(idx, len(s.rows)))
	s.rows = slices.Insert(s.rows, idx, row.Clone())
	s.reindexLocked()
	return nil
}

// position returns the index of key, or -1.
func (s *RowStore) position(key domain.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.index[key]; ok {
		return idx
	}
	return -1
}

// ReplaceAll swaps the entire row collection for t. Columns are matched by name when the
// table header differs from the schema; columns unknown to the schema are dropped.
func (s *RowStore) ReplaceAll(t domain.Table) error {
	rows, err := s.conform(t)
	if err != nil {
		return err
	}
	index := make(map[domain.Key]int, len(rows))
	for i, r := range rows {
		key := domain.Key(r[s.keyIdx])
		if _, dup := index[key]; dup {
			return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
		}
		index[key] = i
	}
	s.mu.Lock()
	s.rows = rows
	s.index = index
	s.mu.Unlock()
	return nil
}

func (s *RowStore) conform(t domain.Table) ([]domain.Row, error) {
	header := t.Header
	if len(header) == 0 {
		header = s.schema.Columns
	}
	out := make([]domain.Row, 0, len(t.Rows))
	if slices.Equal(header, s.schema.Columns) {
		for _, r := range t.Rows {
			if err := s.checkShape(r); err != nil {
				return nil, err
			}
			out = append(out, r.Clone())
		}
		return out, nil
	}
	positions := make([]int, len(s.schema.Columns))
	for i, c := range s.schema.Columns {
		positions[i] = slices.Index(header, c)
	}
	if positions[s.keyIdx] < 0 {
		return nil, fmt.Errorf("table header lacks key column %q: %w", s.schema.KeyColumn, domain.ErrRowShape)
	}
	for _, r := range t.Rows {
		row := make(domain.Row, len(s.schema.Columns))
		for i, p := range positions {
			if p >= 0 && p < len(r) {
				row[i] = r[p]
			}
		}
		if row[s.keyIdx] == "" {
			return nil, fmt.Errorf("fetched row without key: %w", domain.ErrRowShape)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *RowStore) checkShape(row domain.Row) error {
	if len(row) != len(s.schema.Columns) {
		return fmt.Errorf("row has %d fields, schema has %d: %w", len(row), len(s.schema.Columns), domain.ErrRowShape)
	}
	if row[s.keyIdx] == "" {
		return fmt.Errorf("row has an empty %s: %w", s.schema.KeyColumn, domain.ErrRowShape)
	}
	return nil
}

func (s *RowStore) reindexLocked() {
	clear(s.index)
	for i, r := range s.rows {
		s.index[domain.Key(r[s.keyIdx])] = i
	}
}
