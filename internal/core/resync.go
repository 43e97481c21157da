package core

import (
	"context"
	"errors"
	"fmt"

	"applicantsync/pkg/domain"
)

// Refresher supplies a fresh authoritative table on demand.
type Refresher interface {
	Refresh(ctx context.Context) (domain.Table, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (domain.Table, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context) (domain.Table, error) { return f(ctx) }

// GatewayRefresher refreshes through Gateway.FetchAll.
type GatewayRefresher struct {
	Gateway domain.Gateway
}

// Refresh implements Refresher.
func (g GatewayRefresher) Refresh(ctx context.Context) (domain.Table, error) {
	return g.Gateway.FetchAll(ctx)
}

// ResyncTarget is the write surface a strategy may use to repair the local table.
type ResyncTarget interface {
	ReplaceAll(t domain.Table) error
	Replace(key domain.Key, row domain.Row) error
	RemoveByKey(key domain.Key) bool
	InsertAt(position int, row domain.Row) error
}

// ResyncStrategy restores the local table after op's gateway write failed.
type ResyncStrategy interface {
	Resync(ctx context.Context, target ResyncTarget, op *Operation) error
}

// FullResync discards the whole local table and replaces it with a fresh fetch. Optimistic
// edits of other operations still in flight are lost with it; the last full resync wins.
type FullResync struct {
	Refresher Refresher
}

// Resync implements ResyncStrategy.
func (r FullResync) Resync(ctx context.Context, target ResyncTarget, _ *Operation) error {
	if r.Refresher == nil {
		return errors.New("full resync: no refresher configured")
	}
	table, err := r.Refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("force refresh: %w", err)
	}
	if err := target.ReplaceAll(table); err != nil {
		return fmt.Errorf("replace table: %w", err)
	}
	return nil
}

// RevertResync applies the inverse of the failed operation from its pre-image, leaving
// other rows untouched.
type RevertResync struct{}

// Resync implements ResyncStrategy.
func (RevertResync) Resync(_ context.Context, target ResyncTarget, op *Operation) error {
	switch op.Kind {
	case OpCreate:
		target.RemoveByKey(op.Key)
		return nil
	case OpUpdate:
		if op.Before == nil {
			return fmt.Errorf("revert update of %s: no pre-image", op.Key)
		}
		return target.Replace(op.Key, op.Before)
	case OpDelete:
		if op.Before == nil {
			return nil
		}
		return target.InsertAt(op.Position, op.Before)
	default:
		return fmt.Errorf("revert: unknown operation kind %q", op.Kind)
	}
}
