// Package core implements the optimistic sync engine: an in-memory row store that
// mutations are applied to immediately, and a coordinator that writes them through to
// an authoritative gateway in the background, resyncing the store when a write fails.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"applicantsync/pkg/domain"
)

// ErrClosed is returned by mutations issued after Close.
var ErrClosed = errors.New("coordinator closed")

// Coordinator applies create, update and delete to the RowStore optimistically and
// dispatches the matching gateway write. The caller observes the local change as soon as
// the mutation method returns; the returned Operation settles when the write does.
type Coordinator struct {
	store     *RowStore
	gateway   domain.Gateway
	opts      coordinatorOptions
	refresher Refresher
	resync    ResyncStrategy
	drift     *DriftDetector
	dispatch  dispatcher

	// applyMu makes key allocation plus append, and whole-table swaps, atomic with
	// respect to each other.
	applyMu sync.Mutex

	// lifeMu is held shared from the closed check until a mutation is submitted, and
	// exclusively by Close, so every accepted write is tracked by the dispatcher.
	lifeMu sync.RWMutex
	closed bool
}

// NewCoordinator wires a coordinator over store and gateway.
func NewCoordinator(store *RowStore, gateway domain.Gateway, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("coordinator: store is required")
	}
	if gateway == nil {
		return nil, errors.New("coordinator: gateway is required")
	}
	o := defaultCoordinatorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	schema := store.Schema()
	for _, col := range o.required {
		if schema.Index(col) < 0 {
			return nil, fmt.Errorf("coordinator: required field %q not in schema", col)
		}
	}
	c := &Coordinator{store: store, gateway: gateway, opts: o}
	c.refresher = o.refresher
	if c.refresher == nil {
		c.refresher = GatewayRefresher{Gateway: gateway}
	}
	c.resync = o.resync
	if c.resync == nil {
		c.resync = FullResync{Refresher: c.refresher}
	}
	if o.serial {
		c.dispatch = newSerialDispatcher()
	} else {
		c.dispatch = &concurrentDispatcher{}
	}
	c.drift = NewDriftDetector(gateway, o.tracker, o.driftDelay, WithLogger(o.logger), WithMetricsRecorder(o.metrics))
	return c, nil
}

// Store returns the row store the coordinator writes to.
func (c *Coordinator) Store() *RowStore { return c.store }

// Rows returns a snapshot of the current local table.
func (c *Coordinator) Rows() []domain.Row { return c.store.All() }

// Drift exposes the drift detector, mainly for lifecycle inspection.
func (c *Coordinator) Drift() *DriftDetector { return c.drift }

// Create validates fields, appends a new row under a freshly allocated key and
// dispatches the insert.
func (c *Coordinator) Create(ctx context.Context, fields domain.Fields) (*Operation, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.lifeMu.RUnlock()
	if err := c.validate(fields); err != nil {
		return nil, err
	}
	schema := c.store.Schema()

	c.applyMu.Lock()
	payload := fields.Clone()
	next, err := NextKey(schema, c.store.All())
	if err != nil {
		c.applyMu.Unlock()
		return nil, fmt.Errorf("allocate key: %w", err)
	}
	key := domain.KeyFromInt(next)
	payload[schema.KeyColumn] = string(key)
	if col := schema.AppliedOnColumn; col != "" && strings.TrimSpace(payload[col]) == "" {
		payload[col] = c.opts.clock.Now().Format(time.DateOnly)
	}
	if err := c.store.Append(schema.RowFromFields(payload)); err != nil {
		c.applyMu.Unlock()
		return nil, fmt.Errorf("apply create: %w", err)
	}
	c.applyMu.Unlock()

	op := newOperation(OpCreate, key, payload, nil, -1)
	c.applied(op)
	c.submit(ctx, op)
	return op, nil
}

// Update validates the edit, overwrites the row carrying edit.Key in place and
// dispatches the overwrite. The key column of edit.Fields is ignored.
func (c *Coordinator) Update(ctx context.Context, edit Edit) (*Operation, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.lifeMu.RUnlock()
	if err := c.validate(edit.Fields); err != nil {
		return nil, err
	}
	schema := c.store.Schema()

	c.applyMu.Lock()
	before, ok := c.store.Find(edit.Key)
	if !ok {
		c.applyMu.Unlock()
		return nil, domain.KeyError{Key: edit.Key, Err: domain.ErrNotFound}
	}
	position := c.store.position(edit.Key)
	payload := edit.Fields.Clone()
	payload[schema.KeyColumn] = string(edit.Key)
	if err := c.store.Replace(edit.Key, schema.RowFromFields(payload)); err != nil {
		c.applyMu.Unlock()
		return nil, fmt.Errorf("apply update: %w", err)
	}
	c.applyMu.Unlock()

	op := newOperation(OpUpdate, edit.Key, payload, before, position)
	c.applied(op)
	c.submit(ctx, op)
	return op, nil
}

// Delete removes the row carrying key, if any, and dispatches the delete regardless.
func (c *Coordinator) Delete(ctx context.Context, key domain.Key) (*Operation, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.lifeMu.RUnlock()
	c.applyMu.Lock()
	before, _ := c.store.Find(key)
	position := c.store.position(key)
	c.store.RemoveByKey(key)
	c.applyMu.Unlock()

	op := newOperation(OpDelete, key, nil, before, position)
	c.applied(op)
	c.submit(ctx, op)
	return op, nil
}

// Refresh replaces the local table with a fresh fetch and records the remote hash.
func (c *Coordinator) Refresh(ctx context.Context) error {
	hash, hashErr := c.gateway.FetchStateHash(ctx)
	table, err := c.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if err := c.ReplaceAll(table); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if hashErr != nil {
		c.opts.logger.Warn("refresh without state hash", "error", hashErr)
		return nil
	}
	c.opts.tracker.SetRemoteHash(hash)
	return nil
}

// Close stops accepting mutations, waits for dispatched writes to settle and cancels
// pending drift checks. It returns ctx.Err() if ctx ends first.
func (c *Coordinator) Close(ctx context.Context) error {
	c.lifeMu.Lock()
	c.closed = true
	c.lifeMu.Unlock()
	err := c.dispatch.wait(ctx)
	c.drift.Close()
	return err
}

// begin takes lifeMu shared unless the coordinator is closed. Callers release it once
// the operation is submitted.
func (c *Coordinator) begin() error {
	c.lifeMu.RLock()
	if c.closed {
		c.lifeMu.RUnlock()
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) validate(fields domain.Fields) error {
	var missing []string
	for _, col := range c.opts.required {
		if strings.TrimSpace(fields[col]) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return domain.ValidationError{Missing: missing}
	}
	return nil
}

func (c *Coordinator) applied(op *Operation) {
	if len(c.opts.onApplied) == 0 {
		return
	}
	rows := c.store.All()
	for _, h := range c.opts.onApplied {
		h(op.Kind, op.Key, rows)
	}
}

func (c *Coordinator) submit(ctx context.Context, op *Operation) {
	ctx = context.WithoutCancel(ctx)
	c.opts.logger.Debug("optimistic apply", "operation_id", op.ID, "kind", string(op.Kind), "key", string(op.Key))
	c.dispatch.submit(func() { c.settle(ctx, op) })
}

func (c *Coordinator) settle(ctx context.Context, op *Operation) {
	start := time.Now()
	spanCtx, span := c.opts.tracer.Start(ctx, op.name())
	var err error
	switch op.Kind {
	case OpCreate:
		err = c.gateway.Save(spanCtx, op.Payload.Clone(), false, op.Key)
	case OpUpdate:
		err = c.gateway.Save(spanCtx, op.Payload.Clone(), true, op.Key)
	case OpDelete:
		err = c.gateway.Delete(spanCtx, op.Key)
	}
	span.End(err)
	duration := time.Since(start)
	c.opts.metrics.Observe(ctx, op.name(), err == nil, duration)

	if err == nil {
		c.opts.logger.Debug("remote write confirmed", "operation_id", op.ID, "kind", string(op.Kind), "key", string(op.Key), "duration", duration)
		c.recordAudit(ctx, op, AuditStatusSuccess, nil, duration)
		c.drift.Schedule(op.ID)
		op.resolve(nil)
		return
	}

	remoteOp := domain.OpSave
	if op.Kind == OpDelete {
		remoteOp = domain.OpDelete
	}
	var failure error = &domain.RemoteError{Op: remoteOp, Key: op.Key, Update: op.Kind == OpUpdate, Err: err}
	c.opts.logger.Error("remote write failed, resyncing", "operation_id", op.ID, "kind", string(op.Kind), "key", string(op.Key), "error", err)
	if rerr := c.resync.Resync(ctx, c.target(), op); rerr != nil {
		c.opts.logger.Error("resync failed", "operation_id", op.ID, "error", rerr)
		failure = errors.Join(failure, fmt.Errorf("resync: %w", rerr))
	}
	rows := c.store.All()
	for _, h := range c.opts.onRollback {
		h(failure, rows)
	}
	c.recordAudit(ctx, op, AuditStatusRolledBack, failure, time.Since(start))
	op.resolve(failure)
}

func (c *Coordinator) recordAudit(ctx context.Context, op *Operation, status AuditStatus, err error, d time.Duration) {
	entry := AuditEntry{
		OperationID: op.ID,
		Operation:   op.name(),
		Kind:        op.Kind,
		Key:         op.Key,
		Status:      status,
		Duration:    d,
		Timestamp:   c.opts.clock.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.opts.audit.Record(ctx, entry)
}

// ReplaceAll swaps the local table under the apply lock.
func (c *Coordinator) ReplaceAll(t domain.Table) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	return c.store.ReplaceAll(t)
}

func (c *Coordinator) target() ResyncTarget { return lockedTarget{c: c} }

// lockedTarget serializes strategy writes with optimistic applies.
type lockedTarget struct{ c *Coordinator }

func (t lockedTarget) ReplaceAll(table domain.Table) error { return t.c.ReplaceAll(table) }

func (t lockedTarget) Replace(key domain.Key, row domain.Row) error {
	t.c.applyMu.Lock()
	defer t.c.applyMu.Unlock()
	return t.c.store.Replace(key, row)
}

func (t lockedTarget) RemoveByKey(key domain.Key) bool {
	t.c.applyMu.Lock()
	defer t.c.applyMu.Unlock()
	return t.c.store.RemoveByKey(key)
}

func (t lockedTarget) InsertAt(position int, row domain.Row) error {
	t.c.applyMu.Lock()
	defer t.c.applyMu.Unlock()
	return t.c.store.InsertAt(position, row)
}

// Tracker returns the staleness tracker fed by drift checks and Refresh.
func (c *Coordinator) Tracker() StalenessTracker { return c.opts.tracker }
