package core

import (
	"context"
	"time"

	"applicantsync/pkg/domain"
)

// Clock yields the current time for date defaults and audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports the system time.
type ClockFunc func() time.Time

// Now implements Clock, always returning UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Logger is the structured logging surface used by the engine. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus classifies an audit entry outcome.
type AuditStatus string

const (
	AuditStatusSuccess    AuditStatus = "success"
	AuditStatusError      AuditStatus = "error"
	AuditStatusRolledBack AuditStatus = "rolled_back"
)

// AuditEntry describes one settled mutation.
type AuditEntry struct {
	OperationID string
	Operation   string
	Kind        OperationKind
	Key         domain.Key
	Status      AuditStatus
	Error       string
	Duration    time.Duration
	Timestamp   time.Time
}

// AuditRecorder receives an entry for every settled mutation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended once per started operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around gateway round trips.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

// NewNopMetricsRecorder returns a MetricsRecorder that drops observations.
func NewNopMetricsRecorder() MetricsRecorder { return noopMetricsRecorder{} }

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
