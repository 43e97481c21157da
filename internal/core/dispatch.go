package core

import (
	"context"
	"sync"
)

// dispatcher runs gateway round trips off the caller's goroutine.
type dispatcher interface {
	submit(fn func())
	wait(ctx context.Context) error
}

type concurrentDispatcher struct {
	wg sync.WaitGroup
}

func (d *concurrentDispatcher) submit(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *concurrentDispatcher) wait(ctx context.Context) error { return waitGroup(ctx, &d.wg) }

// serialDispatcher chains submissions so each starts after the previous one finished.
type serialDispatcher struct {
	mu   sync.Mutex
	tail chan struct{}
	wg   sync.WaitGroup
}

func newSerialDispatcher() *serialDispatcher {
	tail := make(chan struct{})
	close(tail)
	return &serialDispatcher{tail: tail}
}

func (d *serialDispatcher) submit(fn func()) {
	d.mu.Lock()
	prev := d.tail
	next := make(chan struct{})
	d.tail = next
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()
		defer close(next)
		<-prev
		fn()
	}()
}

func (d *serialDispatcher) wait(ctx context.Context) error { return waitGroup(ctx, &d.wg) }

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
