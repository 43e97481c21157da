package core

import (
	"context"

	"github.com/google/uuid"

	"applicantsync/pkg/domain"
)

// OperationKind names a mutation.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Edit is the command value for Update: the row being edited and its new field values.
type Edit struct {
	Key    domain.Key
	Fields domain.Fields
}

// Operation is a mutation that has been applied locally and dispatched to the gateway.
// It settles exactly once, when the gateway call (and any resync) completes.
type Operation struct {
	ID   string
	Kind OperationKind
	Key  domain.Key
	// Payload is the record handed to the gateway; nil for deletes.
	Payload domain.Fields
	// Before is the row as it was prior to the apply; nil for creates and absent deletes.
	Before domain.Row
	// Position is the index Before occupied, or -1.
	Position int

	done chan struct{}
	err  error
}

func newOperation(kind OperationKind, key domain.Key, payload domain.Fields, before domain.Row, position int) *Operation {
	return &Operation{
		ID:       uuid.NewString(),
		Kind:     kind,
		Key:      key,
		Payload:  payload,
		Before:   before,
		Position: position,
		done:     make(chan struct{}),
	}
}

// Done is closed once the operation has settled.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Err returns the settlement error. It is nil until Done is closed.
func (o *Operation) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the operation settles or ctx ends. Giving up on the wait does not
// cancel the gateway call.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Operation) resolve(err error) {
	o.err = err
	close(o.done)
}

func (o *Operation) name() string { return string(o.Kind) + "_row" }
