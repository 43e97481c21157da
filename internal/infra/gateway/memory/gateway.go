// Package memory implements an in-process authoritative registry table. It backs tests
// and local development, and can inject latency and failures to exercise the sync paths.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"applicantsync/pkg/domain"
)

// Op selects which gateway call an injected failure applies to.
type Op string

const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
	OpHash   Op = "hash"
	OpFetch  Op = "fetch"
)

// Gateway implements domain.Gateway over process memory.
type Gateway struct {
	mu       sync.RWMutex
	header   []string
	keyIdx   int
	rows     []domain.Row
	latency  time.Duration
	failures map[Op][]error
}

var _ domain.Gateway = (*Gateway)(nil)

// New returns an empty table shaped by schema.
func New(schema domain.Schema) *Gateway {
	return &Gateway{
		header:   slices.Clone(schema.Columns),
		keyIdx:   schema.Index(schema.KeyColumn),
		failures: make(map[Op][]error),
	}
}

// Seed appends rows verbatim.
func (g *Gateway) Seed(rows ...domain.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		g.rows = append(g.rows, r.Clone())
	}
}

// SetLatency delays every call by d.
func (g *Gateway) SetLatency(d time.Duration) {
	g.mu.Lock()
	g.latency = d
	g.mu.Unlock()
}

// FailNext queues err to be returned by the next call of kind op.
func (g *Gateway) FailNext(op Op, err error) {
	g.mu.Lock()
	g.failures[op] = append(g.failures[op], err)
	g.mu.Unlock()
}

func (g *Gateway) enter(ctx context.Context, op Op) error {
	g.mu.Lock()
	latency := g.latency
	var err error
	if q := g.failures[op]; len(q) > 0 {
		err, g.failures[op] = q[0], q[1:]
	}
	g.mu.Unlock()
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Save implements domain.Gateway.
func (g *Gateway) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) error {
	if err := g.enter(ctx, OpSave); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("save: empty key")
	}
	row := make(domain.Row, len(g.header))
	for i, c := range g.header {
		row[i] = record[c]
	}
	row[g.keyIdx] = string(key)

	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.indexLocked(key)
	switch {
	case update && idx < 0:
		return domain.KeyError{Key: key, Err: domain.ErrNotFound}
	case update:
		g.rows[idx] = row
	case idx >= 0:
		return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
	default:
		g.rows = append(g.rows, row)
	}
	return nil
}

// Delete implements domain.Gateway. Deleting an absent key is a no-op.
func (g *Gateway) Delete(ctx context.Context, key domain.Key) error {
	if err := g.enter(ctx, OpDelete); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx := g.indexLocked(key); idx >= 0 {
		g.rows = slices.Delete(g.rows, idx, idx+1)
	}
	return nil
}

// FetchStateHash implements domain.Gateway.
func (g *Gateway) FetchStateHash(ctx context.Context) (domain.StateHash, error) {
	if err := g.enter(ctx, OpHash); err != nil {
		return "", err
	}
	return domain.HashTable(g.snapshot()), nil
}

// FetchAll implements domain.Gateway.
func (g *Gateway) FetchAll(ctx context.Context) (domain.Table, error) {
	if err := g.enter(ctx, OpFetch); err != nil {
		return domain.Table{}, err
	}
	return g.snapshot(), nil
}

func (g *Gateway) snapshot() domain.Table {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return domain.Table{Header: g.header, Rows: g.rows}.Clone()
}

func (g *Gateway) indexLocked(key domain.Key) int {
	for i, r := range g.rows {
		if domain.Key(r[g.keyIdx]) == key {
			return i
		}
	}
	return -1
}
