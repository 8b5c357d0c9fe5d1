// Package sync provides the spinlock that serializes access to the kernel's
// diagnostic output devices.
package sync

import "sync/atomic"

const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked after attemptsBeforeYielding failed attempts to
	// grab a contended lock. There is a single hardware context so the
	// kernel leaves it nil; tests point it at runtime.Gosched.
	yieldFn func()
)

// Spinlock implements a lock where each caller trying to acquire it
// busy-waits till the lock becomes available. A spinlock must never be held
// while interrupts are enabled if an interrupt handler may also acquire it;
// pair it with irq.WithoutInterrupts.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired. Any attempt to re-acquire a
// lock already held by the caller will cause a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(1); !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempt++ {
		if attempt%attemptsBeforeYielding == 0 && yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing others to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
