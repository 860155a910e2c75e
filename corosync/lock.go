// Package corosync provides cooperative synchronization primitives for
// coroutines scheduled by the scheduler package. Because the scheduler runs
// at most one coroutine at a time and never preempts it mid-step, Lock and
// Condition do not serialize execution the way a thread mutex does -- they
// exist to enforce structured hand-off invariants between coroutines that
// voluntarily yield at well-defined points.
package corosync

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-corosock/scheduler"
)

// Lock tracks a single owning coroutine. Acquire observes owner == nil;
// Release must be called by the current owner. Violating either protocol
// is a programmer error, reported as ErrInvalidUse: invalid use of these
// primitives is fatal/assertion-like, not something to retry.
type Lock struct {
	mu      sync.Mutex
	owner   *scheduler.Coroutine
	waiters []*scheduler.Coroutine
}

// NewLock returns an unowned Lock.
func NewLock() *Lock { return &Lock{} }

// Acquire blocks the calling coroutine until the lock is unowned, then
// claims it. Must be called from a coroutine's own goroutine.
func (l *Lock) Acquire(c *scheduler.Coroutine) error {
	if c == nil {
		return fmt.Errorf("corosync: %w: Acquire called outside a coroutine", ErrInvalidUse)
	}
	for {
		l.mu.Lock()
		if l.owner == nil {
			l.owner = c
			l.mu.Unlock()
			return nil
		}
		l.waiters = append(l.waiters, c)
		l.mu.Unlock()

		if _, err := c.Suspend(0); err != nil {
			return err
		}
		// Release hands ownership straight to the woken waiter.
		l.mu.Lock()
		handed := l.owner == c
		l.mu.Unlock()
		if handed {
			return nil
		}
	}
}

// Release hands the lock to the next waiter (if any) or marks it unowned.
// Must be called by the current owner.
func (l *Lock) Release(c *scheduler.Coroutine) error {
	l.mu.Lock()
	if l.owner != c {
		l.mu.Unlock()
		return fmt.Errorf("corosync: %w: Release called by non-owner", ErrInvalidUse)
	}
	var next *scheduler.Coroutine
	if len(l.waiters) > 0 {
		next = l.waiters[0]
		l.waiters = l.waiters[1:]
	}
	l.owner = next
	l.mu.Unlock()

	if next != nil {
		return next.Resume(nil)
	}
	return nil
}

// Owner returns the coroutine currently holding the lock, or nil.
func (l *Lock) Owner() *scheduler.Coroutine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}
