package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"applicantsync/pkg/domain"
)

// HashTracker remembers the last remote state hash the client is known to be in sync with.
type HashTracker struct {
	mu      sync.RWMutex
	hash    domain.StateHash
	set     bool
	updated time.Time
}

// NewHashTracker returns an empty tracker.
func NewHashTracker() *HashTracker { return &HashTracker{} }

// SetRemoteHash implements StalenessTracker.
func (t *HashTracker) SetRemoteHash(hash domain.StateHash) {
	t.mu.Lock()
	t.hash = hash
	t.set = true
	t.updated = time.Now().UTC()
	t.mu.Unlock()
}

// Hash returns the tracked hash; ok is false before the first SetRemoteHash.
func (t *HashTracker) Hash() (hash domain.StateHash, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hash, t.set
}

// UpdatedAt reports when the hash was last set.
func (t *HashTracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}

// StaleFunc is invoked when the remote hash no longer matches the tracked one.
type StaleFunc func(ctx context.Context, remote domain.StateHash) error

// StalenessPoller periodically compares the remote state hash with the tracked one.
type StalenessPoller struct {
	gateway  domain.Gateway
	tracker  *HashTracker
	interval time.Duration
	onStale  StaleFunc
	logger   Logger
}

// NewStalenessPoller builds a poller. onStale typically calls Coordinator.Refresh.
func NewStalenessPoller(gateway domain.Gateway, tracker *HashTracker, interval time.Duration, onStale StaleFunc, logger Logger) *StalenessPoller {
	if logger == nil {
		logger = noopLogger{}
	}
	if tracker == nil {
		tracker = NewHashTracker()
	}
	return &StalenessPoller{gateway: gateway, tracker: tracker, interval: interval, onStale: onStale, logger: logger}
}

// Check fetches the remote hash once. An unset tracker is seeded and reported fresh.
func (p *StalenessPoller) Check(ctx context.Context) (bool, error) {
	remote, err := p.gateway.FetchStateHash(ctx)
	if err != nil {
		return false, err
	}
	known, ok := p.tracker.Hash()
	if !ok {
		p.tracker.SetRemoteHash(remote)
		return false, nil
	}
	if remote == known {
		return false, nil
	}
	p.logger.Info("local table is stale", "known_hash", string(known), "remote_hash", string(remote))
	if p.onStale != nil {
		if err := p.onStale(ctx, remote); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Run polls until ctx ends. Check failures are logged and polling continues.
func (p *StalenessPoller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("staleness poller: interval must be positive")
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Check(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("staleness check failed", "error", err)
			}
		}
	}
}
