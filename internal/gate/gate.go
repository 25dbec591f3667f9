// Package gate provides a process-wide single-flight guard.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most one holder at a time. It never queues: a caller that
// cannot acquire it immediately is expected to report "busy".
type Gate struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

// New creates an open gate.
func New() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// TryAcquire takes the gate without waiting. It returns false if the gate
// is already held.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.held.Store(true)
	return true
}

// Release frees the gate. Releasing an open gate is a no-op.
func (g *Gate) Release() {
	if g.held.CompareAndSwap(true, false) {
		g.sem.Release(1)
	}
}

// Enter acquires the gate and returns a release func intended for defer.
// The returned func is safe to call more than once.
func (g *Gate) Enter() (release func(), ok bool) {
	if !g.TryAcquire() {
		return func() {}, false
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			g.Release()
		}
	}, true
}

// Held reports whether the gate is currently taken.
func (g *Gate) Held() bool {
	return g.held.Load()
}

// Wait blocks until the gate is free or ctx is done. Used only for graceful
// shutdown so in-flight evaluations can finish.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.sem.Release(1)
	return nil
}
