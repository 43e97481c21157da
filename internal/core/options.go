package core

import (
	"time"

	"applicantsync/pkg/domain"
)

// DefaultDriftDelay is how long the drift detector waits after a confirmed write.
const DefaultDriftDelay = time.Second

// AppliedHook runs synchronously after every optimistic apply, before the gateway call.
// It must not call Coordinator.Close.
// rows is a snapshot of the store after the apply.
type AppliedHook func(kind OperationKind, key domain.Key, rows []domain.Row)

// RollbackHook runs after a failed write was resynced. rows is the store content afterwards.
type RollbackHook func(cause error, rows []domain.Row)

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	required   []string
	driftDelay time.Duration
	tracker    StalenessTracker
	refresher  Refresher
	resync     ResyncStrategy
	serial     bool
	onApplied  []AppliedHook
	onRollback []RollbackHook
}

func defaultCoordinatorOptions() coordinatorOptions {
	return coordinatorOptions{
		clock:      ClockFunc(nil),
		logger:     noopLogger{},
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		driftDelay: DefaultDriftDelay,
		tracker:    NewHashTracker(),
	}
}

// WithClock overrides the time source used for applied-on defaults and audit timestamps.
func WithClock(clock Clock) Option {
	return func(o *coordinatorOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *coordinatorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder receives one entry per settled mutation.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(o *coordinatorOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithMetricsRecorder observes gateway round trips and drift checks.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *coordinatorOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer wraps gateway round trips in spans.
func WithTracer(tracer Tracer) Option {
	return func(o *coordinatorOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRequiredFields sets the columns that must be non-empty for create and update.
func WithRequiredFields(columns ...string) Option {
	return func(o *coordinatorOptions) {
		o.required = append([]string(nil), columns...)
	}
}

// WithDriftDelay sets the pause between a confirmed write and the state hash fetch.
func WithDriftDelay(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		if d >= 0 {
			o.driftDelay = d
		}
	}
}

// WithStalenessTracker receives remote hashes observed after confirmed writes.
func WithStalenessTracker(tracker StalenessTracker) Option {
	return func(o *coordinatorOptions) {
		if tracker != nil {
			o.tracker = tracker
		}
	}
}

// WithRefresher replaces the force-refresh source. Defaults to Gateway.FetchAll.
func WithRefresher(r Refresher) Option {
	return func(o *coordinatorOptions) {
		if r != nil {
			o.refresher = r
		}
	}
}

// WithResyncStrategy replaces the recovery applied after a failed write. Defaults to FullResync.
func WithResyncStrategy(s ResyncStrategy) Option {
	return func(o *coordinatorOptions) {
		if s != nil {
			o.resync = s
		}
	}
}

// WithSerialDispatch runs gateway writes one at a time in submission order.
func WithSerialDispatch() Option {
	return func(o *coordinatorOptions) { o.serial = true }
}

// WithAppliedHook registers a hook fired after each optimistic apply.
func WithAppliedHook(h AppliedHook) Option {
	return func(o *coordinatorOptions) {
		if h != nil {
			o.onApplied = append(o.onApplied, h)
		}
	}
}

// WithRollbackHook registers a hook fired after each resync caused by a failed write.
func WithRollbackHook(h RollbackHook) Option {
	return func(o *coordinatorOptions) {
		if h != nil {
			o.onRollback = append(o.onRollback, h)
		}
	}
}
