package scheduler

import (
	"container/heap"
	"time"

	"github.com/joeycumines/go-corosock/corolog"
)

// beginSuspend implements suspend(id, timeout?):
// moves the coroutine from ready/Running to Suspended, installing a
// sleep-timer heap entry when timeout > 0. Must be called from the
// coroutine's own goroutine, checked via the Running state.
func (s *Scheduler) beginSuspend(c *Coroutine, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.state != Running {
		return ErrInvalidUse
	}
	if c.pendingErr != nil {
		// An exception was staged while this coroutine was Running (e.g. a
		// concurrent Terminate). A pending exception is consumed on the very
		// next step, so don't actually suspend -- go straight back to ready
		// so the exception is delivered on the next step instead of being
		// sat on for up to timeout.
		c.deadline = time.Time{}
		c.state = Scheduled
		s.addReadyLocked(c)
		return nil
	}
	if timeout > 0 {
		c.deadline = time.Now().Add(timeout)
		heap.Push(&s.sleep, sleepEntry{deadline: c.deadline, coro: c})
	} else {
		c.deadline = time.Time{}
	}
	c.state = Suspended
	return nil
}

// consumeDelivery reads and clears whatever value or exception was staged
// for this coroutine, for delivery on the step that just woke it.
func (s *Scheduler) consumeDelivery(c *Coroutine) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, err := c.pendingValue, c.pendingErr
	c.pendingValue, c.pendingErr = nil, nil
	return value, err
}

// resume implements resume(id, value): moves a
// Suspended coroutine to ready, staging value as the next delivery. If the
// coroutine is already Scheduled with a pending non-terminal exception (the
// race between a socket completion and a timeout firing concurrently), the
// exception is cancelled and value is installed instead.
func (s *Scheduler) resume(c *Coroutine, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.state {
	case Suspended:
		c.deadline = time.Time{}
		c.pendingValue, c.pendingErr = value, nil
		c.state = Scheduled
		s.addReadyLocked(c)
		return nil
	case Scheduled:
		if c.pendingErr != nil && c.pendingErr != Exit {
			c.pendingErr = nil
			c.pendingValue = value
			return nil
		}
		return ErrInvalidUse
	case Done:
		return ErrAlreadyDone
	default:
		return ErrInvalidUse
	}
}

// throw implements throw(id, kind, payload): stages an exception for the
// coroutine's next step, moving it to ready if it was Suspended. A Running
// coroutine is rejected with ErrInvalidUse rather than silently swallowed --
// only terminate (Coroutine.Terminate's path) is lenient about Running, and
// even then the caveat is that an exception the coroutine raises during its
// current run may be overwritten.
func (s *Scheduler) throw(c *Coroutine, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.state {
	case Suspended:
		c.deadline = time.Time{}
		c.pendingErr, c.pendingValue = err, nil
		c.state = Scheduled
		s.addReadyLocked(c)
		return nil
	case Scheduled:
		c.pendingErr = err
		return nil
	case Running:
		return ErrInvalidUse
	default:
		return ErrAlreadyDone
	}
}

// terminate stages Exit into c, the lenient counterpart throw uses only for
// Coroutine.Terminate: unlike throw, it accepts a Running coroutine. This
// mirrors the original's split between a strict plain throw and a lenient
// terminate that explicitly accepts losing a same-step exception race.
func (s *Scheduler) terminate(c *Coroutine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.state {
	case Suspended:
		c.deadline = time.Time{}
		c.pendingErr, c.pendingValue = Exit, nil
		c.state = Scheduled
		s.addReadyLocked(c)
		return nil
	case Scheduled, Running:
		c.pendingErr = Exit
		return nil
	default:
		return ErrAlreadyDone
	}
}

// finish records a coroutine's terminal value/error, removes it from the
// table, and raises its complete signal exactly once.
func (s *Scheduler) finish(c *Coroutine, value any, err error) {
	s.mu.Lock()
	c.result, c.resultErr = value, err
	c.state = Done
	delete(s.coros, c.id)
	s.mu.Unlock()
	close(c.done)

	if err != nil && err != Exit {
		s.log.Log(corolog.LevelWarn, "scheduler", "coroutine finished with error",
			corolog.Fields{"id": c.id, "name": c.name, "error": err.Error()})
	} else {
		s.log.Log(corolog.LevelDebug, "scheduler", "coroutine done",
			corolog.Fields{"id": c.id, "name": c.name})
	}
}

// addReadyLocked appends c to the ready set and, if the set transitioned
// from empty, wakes the notifier. Callers must hold s.mu.
func (s *Scheduler) addReadyLocked(c *Coroutine) {
	wasEmpty := len(s.ready) == 0
	s.ready = append(s.ready, c)
	if wasEmpty {
		_ = s.notif.Wake()
	}
}
