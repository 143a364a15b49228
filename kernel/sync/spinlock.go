// Package sync provides the synchronization primitives available to kernel
// tasks once interrupts are enabled: a spinlock and a turn-based handoff
// flag.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked by busy-wait loops between attempts. Tests
	// substitute runtime.Gosched.
	yieldFn = func() {}
)

// SetYieldFn registers the function that busy-wait loops call between
// attempts. The scheduler installs its yield primitive here once it is up.
func SetYieldFn(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	yieldFn = fn
}

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		yieldFn()
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
