// Package registryapi defines the JSON wire contract of the registry HTTP endpoint. The
// server in internal/adapters/httpapi and the client gateway in
// internal/infra/gateway/httpgw both speak it.
package registryapi

import (
	"errors"

	"applicantsync/pkg/domain"
)

// Route paths.
const (
	PathHealth    = "/health"
	PathMetrics   = "/metrics"
	PathRows      = "/rows"
	PathStateHash = "/state-hash"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeNotFound     = "not_found"
	CodeDuplicateKey = "duplicate_key"
	CodeBadRequest   = "bad_request"
	CodeInternal     = "internal"
)

// SaveRequest is the body of POST /rows and PUT /rows/{key}. Key is required on POST and
// ignored on PUT, where the path carries it.
type SaveRequest struct {
	Key    domain.Key    `json:"key,omitempty"`
	Record domain.Fields `json:"record"`
}

// StateHashResponse is the body of GET /state-hash.
type StateHashResponse struct {
	Hash domain.StateHash `json:"hash"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Key     domain.Key `json:"key,omitempty"`
}

// CodeFor classifies err for the wire.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrDuplicateKey):
		return CodeDuplicateKey
	default:
		return CodeInternal
	}
}

// Err reconstructs a domain error from a decoded response so callers can use errors.Is.
func (e ErrorResponse) Err() error {
	var sentinel error
	switch e.Code {
	case CodeNotFound:
		sentinel = domain.ErrNotFound
	case CodeDuplicateKey:
		sentinel = domain.ErrDuplicateKey
	}
	if sentinel != nil {
		return domain.KeyError{Key: e.Key, Err: sentinel}
	}
	return errors.New(e.Code + ": " + e.Message)
}
