package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"applicantsync/pkg/domain"
)

var testSchema = domain.Schema{
	Columns:         []string{"id", "name", "email", "applied_on", "time"},
	KeyColumn:       "id",
	AppliedOnColumn: "applied_on",
}

type saveCall struct {
	record domain.Fields
	update bool
	key    domain.Key
}

// fakeGateway records calls. When gate is set, writes block until it is closed or
// receives a value.
type fakeGateway struct {
	mu        sync.Mutex
	saves     []saveCall
	deletes   []domain.Key
	hashCalls int
	fetches   int

	saveErr   error
	saveErrFn func(key domain.Key) error
	deleteErr error
	hashErr   error
	fetchErr  error
	table     domain.Table
	hash      domain.StateHash

	gate     chan struct{}
	hashSeen chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{hash: "h1", hashSeen: make(chan struct{}, 16)}
}

func (g *fakeGateway) Save(_ context.Context, record domain.Fields, update bool, key domain.Key) error {
	g.mu.Lock()
	g.saves = append(g.saves, saveCall{record: record, update: update, key: key})
	gate, err := g.gate, g.saveErr
	if g.saveErrFn != nil {
		err = g.saveErrFn(key)
	}
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (g *fakeGateway) Delete(_ context.Context, key domain.Key) error {
	g.mu.Lock()
	g.deletes = append(g.deletes, key)
	gate, err := g.gate, g.deleteErr
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (g *fakeGateway) FetchStateHash(context.Context) (domain.StateHash, error) {
	g.mu.Lock()
	g.hashCalls++
	hash, err := g.hash, g.hashErr
	g.mu.Unlock()
	select {
	case g.hashSeen <- struct{}{}:
	default:
	}
	return hash, err
}

func (g *fakeGateway) FetchAll(context.Context) (domain.Table, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	return g.table.Clone(), g.fetchErr
}

func (g *fakeGateway) saveCalls() []saveCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]saveCall(nil), g.saves...)
}

func (g *fakeGateway) deleteCalls() []domain.Key {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Key(nil), g.deletes...)
}

func (g *fakeGateway) hashCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hashCalls
}

func newTestStore(t *testing.T, rows ...domain.Row) *RowStore {
	t.Helper()
	store, err := NewRowStore(testSchema)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, r := range rows {
		if err := store.Append(r); err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}
	return store
}

func row(id, name string) domain.Row {
	return domain.Row{id, name, "", "", ""}
}

func newTestCoordinator(t *testing.T, store *RowStore, gw domain.Gateway, opts ...Option) *Coordinator {
	t.Helper()
	base := []Option{WithDriftDelay(time.Millisecond), WithRequiredFields("name")}
	c, err := NewCoordinator(store, gw, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitOp(t *testing.T, op *Operation) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := op.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("operation %s did not settle", op.ID)
	}
	return err
}

func keys(rows []domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r[0]
	}
	return out
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}
