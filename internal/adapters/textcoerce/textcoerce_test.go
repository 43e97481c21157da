package textcoerce

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"applicantsync/internal/core"
	"applicantsync/internal/infra/gateway/memory"
	"applicantsync/pkg/domain"
)

var schema = domain.Schema{Columns: []string{"id", "name", "time"}, KeyColumn: "id"}

func TestEncodePrefixesOnlyConfiguredColumns(t *testing.T) {
	g := Wrap(memory.New(schema), "time")
	in := domain.Fields{"name": "10:30", "time": "10:30"}
	out := g.Encode(in)
	if out["time"] != "'10:30" || out["name"] != "10:30" {
		t.Fatalf("unexpected encoding: %v", out)
	}
	if in["time"] != "10:30" {
		t.Fatalf("input record must not be mutated")
	}
	if _, ok := g.Encode(domain.Fields{"name": "Kim"})["time"]; ok {
		t.Fatalf("absent column must not be added to the record")
	}
	if got := g.Encode(domain.Fields{"time": ""})["time"]; got != Marker {
		t.Fatalf("expected bare marker for an explicitly empty column, got %q", got)
	}
}

func TestRoundTripStripsMarker(t *testing.T) {
	backend := memory.New(schema)
	g := Wrap(backend, "time")
	ctx := context.Background()
	if err := g.Save(ctx, domain.Fields{"id": "1", "name": "Kim", "time": "09:15"}, false, "1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _ := backend.FetchAll(ctx)
	if raw.Rows[0][2] != "'09:15" {
		t.Fatalf("backend should hold the marked value, got %q", raw.Rows[0][2])
	}
	table, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if table.Rows[0][2] != "09:15" {
		t.Fatalf("expected marker stripped, got %q", table.Rows[0][2])
	}
	if err := g.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := g.FetchStateHash(ctx); err != nil {
		t.Fatalf("hash: %v", err)
	}
}

type recordingGateway struct {
	*memory.Gateway
	saved chan domain.Fields
}

func (r recordingGateway) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) error {
	r.saved <- record.Clone()
	return r.Gateway.Save(ctx, record, update, key)
}

func TestCoordinatorPayloadMarkedButStoreClean(t *testing.T) {
	inner := recordingGateway{Gateway: memory.New(schema), saved: make(chan domain.Fields, 2)}
	store, err := core.NewRowStore(schema)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	c, err := core.NewCoordinator(store, Wrap(inner, "time"), core.WithDriftDelay(time.Hour))
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	op, err := c.Create(context.Background(), domain.Fields{"name": "Kim", "time": "14:00"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := op.Wait(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	sent := <-inner.saved
	if !strings.HasPrefix(sent["time"], Marker) {
		t.Fatalf("outbound time must start with marker, got %q", sent["time"])
	}
	if got, _ := store.Find(op.Key); strings.HasPrefix(got[2], Marker) {
		t.Fatalf("local row must not carry the marker, got %q", got[2])
	}
	if strings.HasPrefix(op.Payload["time"], Marker) {
		t.Fatalf("operation payload is pre-encoding and must stay clean")
	}
}

type failingGateway struct{ domain.Gateway }

func (failingGateway) FetchAll(context.Context) (domain.Table, error) {
	return domain.Table{}, errors.New("down")
}

func TestFetchAllError(t *testing.T) {
	g := Wrap(failingGateway{Gateway: memory.New(schema)}, "time")
	if _, err := g.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
