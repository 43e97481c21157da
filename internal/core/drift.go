package core

import (
	"context"
	"sync"
	"time"

	"applicantsync/pkg/domain"
)

// StalenessTracker receives the latest known remote state hash.
type StalenessTracker interface {
	SetRemoteHash(hash domain.StateHash)
}

// DriftDetector refreshes the tracked remote hash a fixed delay after each confirmed write.
// Checks are keyed by operation ID and cancelled by Close.
type DriftDetector struct {
	gateway domain.Gateway
	tracker StalenessTracker
	delay   time.Duration
	logger  Logger
	metrics MetricsRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// NewDriftDetector constructs a detector. Only the logger and metrics options apply.
func NewDriftDetector(gateway domain.Gateway, tracker StalenessTracker, delay time.Duration, opts ...Option) *DriftDetector {
	o := defaultCoordinatorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if tracker == nil {
		tracker = o.tracker
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DriftDetector{
		gateway: gateway,
		tracker: tracker,
		delay:   delay,
		logger:  o.logger,
		metrics: o.metrics,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*time.Timer),
	}
}

// Schedule arms a check for operation id. It reports false once the detector is closed
// or when a check for id is already pending.
func (d *DriftDetector) Schedule(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if _, dup := d.pending[id]; dup {
		return false
	}
	d.wg.Add(1)
	d.pending[id] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		d.check(id)
	})
	return true
}

// Cancel disarms the pending check for id and reports whether one was stopped.
func (d *DriftDetector) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.pending[id]
	if !ok {
		return false
	}
	delete(d.pending, id)
	if t.Stop() {
		d.wg.Done()
		return true
	}
	return false
}

// Pending reports how many checks are armed.
func (d *DriftDetector) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops armed checks, aborts a running one and waits for it to return.
func (d *DriftDetector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for id, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

func (d *DriftDetector) check(id string) {
	start := time.Now()
	hash, err := d.gateway.FetchStateHash(d.ctx)
	d.metrics.Observe(d.ctx, "drift_check", err == nil, time.Since(start))
	if err != nil {
		d.logger.Warn("drift check failed", "operation_id", id, "error", domain.DriftCheckError{Err: err})
		return
	}
	d.tracker.SetRemoteHash(hash)
	d.logger.Debug("remote state hash refreshed", "operation_id", id, "hash", string(hash))
}
