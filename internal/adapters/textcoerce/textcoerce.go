// Package textcoerce decorates a gateway whose backend stores cells as tabular text and
// would otherwise reinterpret some of them (times, numbers) as typed values. Outbound
// values of the configured columns are prefixed with Marker; the marker is stripped again
// from fetched tables so it never reaches the local row store.
package textcoerce

import (
	"context"
	"slices"
	"strings"

	"applicantsync/pkg/domain"
)

// Marker is the text-coercion prefix understood by spreadsheet-style backends.
const Marker = "'"

// Gateway applies the marker around an inner gateway.
type Gateway struct {
	next    domain.Gateway
	columns []string
}

var _ domain.Gateway = (*Gateway)(nil)

// Wrap decorates next so values under columns are sent as text.
func Wrap(next domain.Gateway, columns ...string) *Gateway {
	return &Gateway{next: next, columns: slices.Clone(columns)}
}

// Encode returns a copy of record with every configured column it carries prefixed by
// Marker. Absent columns stay absent.
func (g *Gateway) Encode(record domain.Fields) domain.Fields {
	out := record.Clone()
	for _, col := range g.columns {
		if v, ok := out[col]; ok {
			out[col] = Marker + v
		}
	}
	return out
}

// Save implements domain.Gateway.
func (g *Gateway) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) error {
	return g.next.Save(ctx, g.Encode(record), update, key)
}

// Delete implements domain.Gateway.
func (g *Gateway) Delete(ctx context.Context, key domain.Key) error {
	return g.next.Delete(ctx, key)
}

// FetchStateHash implements domain.Gateway.
func (g *Gateway) FetchStateHash(ctx context.Context) (domain.StateHash, error) {
	return g.next.FetchStateHash(ctx)
}

// FetchAll implements domain.Gateway, removing one leading marker from configured columns.
func (g *Gateway) FetchAll(ctx context.Context) (domain.Table, error) {
	t, err := g.next.FetchAll(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	var positions []int
	for _, col := range g.columns {
		if idx := slices.Index(t.Header, col); idx >= 0 {
			positions = append(positions, idx)
		}
	}
	for _, r := range t.Rows {
		for _, idx := range positions {
			if idx < len(r) {
				r[idx] = strings.TrimPrefix(r[idx], Marker)
			}
		}
	}
	return t, nil
}
