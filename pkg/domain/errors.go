package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports that no row carries the requested key.
	ErrNotFound = errors.New("row not found")
	// ErrDuplicateKey reports an insert whose key is already present.
	ErrDuplicateKey = errors.New("duplicate sequence key")
	// ErrRowShape reports a row whose width differs from the schema.
	ErrRowShape = errors.New("row does not match schema")
)

// KeyError wraps one of the sentinel errors above with the offending key.
type KeyError struct {
	Key Key
	Err error
}

func (e KeyError) Error() string { return fmt.Sprintf("key %s: %v", e.Key, e.Err) }

// Unwrap exposes the sentinel for errors.Is.
func (e KeyError) Unwrap() error { return e.Err }

// ValidationError lists required columns that were empty or absent.
type ValidationError struct {
	Missing []string
}

func (e ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// RemoteOp names the gateway call that failed.
type RemoteOp string

const (
	OpSave   RemoteOp = "save"
	OpDelete RemoteOp = "delete"
)

// RemoteError is surfaced after a gateway write failed and the local table was resynced.
type RemoteError struct {
	Op     RemoteOp
	Key    Key
	Update bool
	Err    error
}

func (e *RemoteError) Error() string {
	op := string(e.Op)
	if e.Op == OpSave && e.Update {
		op = "update"
	}
	return fmt.Sprintf("remote %s of row %s failed: %v", op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// DriftCheckError wraps a failed post-confirmation hash fetch. It is logged, never surfaced.
type DriftCheckError struct {
	Err error
}

func (e DriftCheckError) Error() string { return "drift check: " + e.Err.Error() }

func (e DriftCheckError) Unwrap() error { return e.Err }
