// Package notifier abstracts the host operating system's best available
// I/O readiness mechanism behind one interface: register a file descriptor
// and a callback, arm an interest mask, and have Poll invoke the callback
// when the kernel reports it ready. It also owns the socket-timeout
// min-heap, kept deliberately separate from the scheduler's own sleep-timer
// heap (see timeout.go) even though the two are structurally identical.
package notifier

import (
	"sync"
	"time"

	"github.com/joeycumines/go-corosock/corolog"
)

// TimeoutCallback fires when an armed per-socket timeout expires before the
// operation it guards completes.
type TimeoutCallback func()

// Notifier owns one OS-specific poller, the control-pipe wakeup mechanism,
// and the socket-timeout heap. Safe for concurrent use: Register, Modify,
// Unregister, ArmTimeout, DisarmTimeout, and Wake may all be called from
// threads other than the one driving Poll.
type Notifier struct {
	p    *poller
	log  corolog.Logger
	mu   sync.Mutex
	heap timeoutHeap

	wakeReadFD  int
	wakeWriteFD int
}

// New creates a Notifier and registers its internal control pipe for
// readability, so Poll always wakes promptly on Wake.
func New(log corolog.Logger) (*Notifier, error) {
	if log == nil {
		log = corolog.NoOp()
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	readFD, writeFD, err := newWakeupFDs()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	n := &Notifier{p: p, log: log, wakeReadFD: readFD, wakeWriteFD: writeFD}
	if err := p.Register(readFD, Readable, func(Events) {
		_ = wakeupDrain(readFD)
	}); err != nil {
		_ = wakeupClose(readFD, writeFD)
		_ = p.Close()
		return nil, err
	}
	return n, nil
}

// Register records the fd's callback and arms the given interest. mask ==
// 0 registers the fd with no armed interest yet (a later Modify arms it).
func (n *Notifier) Register(fd int, mask Events, cb Callback) error {
	return n.p.Register(fd, mask, cb)
}

// Modify changes the armed interest for an already-registered fd. mask ==
// 0 removes interest without unregistering, per the contract fds must
// register once and re-arm per operation.
func (n *Notifier) Modify(fd int, mask Events) error {
	return n.p.Modify(fd, mask)
}

// Unregister removes fd from the poller entirely.
func (n *Notifier) Unregister(fd int) error {
	return n.p.Unregister(fd)
}

// ArmTimeout installs a socket-timeout heap entry. owner.Deadline() must
// already return deadline at the moment this is called; the entry becomes
// stale (silently discarded) the moment owner's live deadline diverges,
// which DisarmTimeout achieves by convention -- see TimeoutOwner.
func (n *Notifier) ArmTimeout(owner TimeoutOwner, deadline time.Time, cb TimeoutCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.heap.push(timeoutEntry{deadline: deadline, owner: owner, cb: cb})
}

// DisarmTimeout is a documentation-only convenience: callers disarm by
// changing what owner.Deadline() returns (typically to the zero Time)
// before calling this, so any outstanding heap entry is recognized as
// stale and discarded without firing the next time it is popped.
func (n *Notifier) DisarmTimeout(owner TimeoutOwner) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.heap.disarm(owner)
}

// Wake unblocks a concurrent Poll call from any thread. Idempotent: multiple
// Wake calls before Poll drains them coalesce into a single wakeup.
func (n *Notifier) Wake() error {
	return wakeupSignal(n.wakeWriteFD)
}

// Close releases the poller and wakeup resources. Registered fds are the
// caller's responsibility to close; the notifier holds only weak
// references to them by fd number.
func (n *Notifier) Close() error {
	_ = wakeupClose(n.wakeReadFD, n.wakeWriteFD)
	return n.p.Close()
}

// Poll blocks for up to timeout, rounded up to a whole millisecond (a
// negative value blocks forever, zero returns immediately), dispatching ready callbacks inline, then fires any
// socket-timeout entries whose deadline has passed. The effective wait is
// clamped to the earliest armed socket timeout: timeout is only an upper
// bound.
func (n *Notifier) Poll(timeout time.Duration) error {
	waitMs := durationToPollMs(timeout)

	n.mu.Lock()
	if d, ok := n.heap.peekDeadline(); ok {
		if until := time.Until(d); until <= 0 {
			waitMs = 0
		} else if waitMs < 0 || until < time.Duration(waitMs)*time.Millisecond {
			waitMs = durationToPollMs(until)
			if waitMs < 0 {
				waitMs = 0
			}
		}
	}
	n.mu.Unlock()

	if _, err := n.p.Wait(waitMs); err != nil {
		return err
	}

	n.fireExpiredTimeouts()
	return nil
}

func (n *Notifier) fireExpiredTimeouts() {
	now := time.Now()
	var fired []TimeoutCallback
	n.mu.Lock()
	for {
		entry, ok := n.heap.peek()
		if !ok || entry.deadline.After(now) {
			break
		}
		n.heap.pop()
		if n.heap.isStale(entry) {
			continue
		}
		fired = append(fired, entry.cb)
	}
	n.mu.Unlock()

	for _, cb := range fired {
		cb()
	}
}

func durationToPollMs(d time.Duration) int {
	if d < 0 {
		return -1
	}
	// Round up, so a wait never ends before d has elapsed.
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms < 0 {
		ms = 0
	}
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}
