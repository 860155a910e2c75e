package corosync

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-corosock/scheduler"
)

// Condition is a cooperative condition variable: an owner field (acquired
// like a Lock), a notified flag, and a FIFO wait queue.
type Condition struct {
	mu       sync.Mutex
	owner    *scheduler.Coroutine
	notified bool
	waiters  []*scheduler.Coroutine
}

// NewCondition returns an unowned Condition.
func NewCondition() *Condition { return &Condition{} }

// Acquire claims ownership of the condition, required before Wait or
// Notify -- the condition variable doubles as its own guarding lock.
func (cond *Condition) Acquire(c *scheduler.Coroutine) error {
	if c == nil {
		return fmt.Errorf("corosync: %w: Acquire called outside a coroutine", ErrInvalidUse)
	}
	for {
		cond.mu.Lock()
		if cond.owner == nil {
			cond.owner = c
			cond.mu.Unlock()
			return nil
		}
		cond.mu.Unlock()
		if _, err := c.Suspend(0); err != nil {
			return err
		}
	}
}

// Release relinquishes ownership. Must be called by the current owner.
func (cond *Condition) Release(c *scheduler.Coroutine) error {
	cond.mu.Lock()
	if cond.owner != c {
		cond.mu.Unlock()
		return fmt.Errorf("corosync: %w: Release called by non-owner", ErrInvalidUse)
	}
	cond.owner = nil
	cond.mu.Unlock()
	return nil
}

// Wait, when notified is already set, clears the flag, keeps ownership,
// and returns false immediately (no suspension). Otherwise it clears
// ownership, enqueues the caller, suspends, and on resume re-enters the
// wait loop --, Notify transfers ownership to the
// woken coroutine together with setting notified, so the re-entry observes
// it and returns without suspending again.
func (cond *Condition) Wait(c *scheduler.Coroutine) (bool, error) {
	cond.mu.Lock()
	if cond.owner != c {
		cond.mu.Unlock()
		return false, fmt.Errorf("corosync: %w: Wait called by non-owner", ErrInvalidUse)
	}
	if cond.notified {
		cond.notified = false
		cond.mu.Unlock()
		return false, nil
	}
	cond.owner = nil
	cond.waiters = append(cond.waiters, c)
	cond.mu.Unlock()

	if _, err := c.Suspend(0); err != nil {
		return false, err
	}
	return cond.Wait(c)
}

// Notify sets the notified flag and, if the wait queue is non-empty,
// transfers ownership to and resumes the head waiter.
func (cond *Condition) Notify() error {
	cond.mu.Lock()
	cond.notified = true
	var head *scheduler.Coroutine
	if len(cond.waiters) > 0 {
		head = cond.waiters[0]
		cond.waiters = cond.waiters[1:]
		cond.owner = head
	}
	cond.mu.Unlock()

	if head != nil {
		return head.Resume(nil)
	}
	return nil
}
