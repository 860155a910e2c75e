package notifier

import (
	"container/heap"
	"time"
)

// TimeoutOwner is implemented by whatever ArmTimeout's caller is guarding
// (an *asyncsocket.AsyncSocket in practice). Deadline must return the
// owner's current live deadline; a heap entry is stale once the owner's
// deadline no longer equals the value recorded when the entry was pushed.
// The owner is responsible for clearing (or changing) its deadline field
// when the operation it guards completes or is cancelled.
type TimeoutOwner interface {
	Deadline() time.Time
}

// timeoutEntry is a (deadline, owner) socket-timeout node, the notifier's
// own min-heap kept deliberately separate from the scheduler's sleep-timer
// heap (scheduler/timer.go) despite the identical shape.
type timeoutEntry struct {
	deadline time.Time
	owner    TimeoutOwner
	cb       TimeoutCallback
}

type timeoutHeap []timeoutEntry

func (h timeoutHeap) Len() int           { return len(h) }
func (h timeoutHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timeoutHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timeoutHeap) Push(x any)        { *h = append(*h, x.(timeoutEntry)) }
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func (h *timeoutHeap) push(e timeoutEntry) {
	heap.Push(h, e)
}

func (h *timeoutHeap) pop() timeoutEntry {
	return heap.Pop(h).(timeoutEntry)
}

func (h timeoutHeap) peek() (timeoutEntry, bool) {
	if len(h) == 0 {
		return timeoutEntry{}, false
	}
	return h[0], true
}

func (h timeoutHeap) peekDeadline() (time.Time, bool) {
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[0].deadline, true
}

func (h timeoutHeap) isStale(e timeoutEntry) bool {
	return e.owner == nil || !e.owner.Deadline().Equal(e.deadline)
}

// disarm is a convenience no-op hook: staleness is detected lazily against
// owner.Deadline() at pop time, so disarming just means the caller has
// already mutated its own deadline field. Kept for API symmetry with
// the add_timeout/del_timeout pair.
func (h timeoutHeap) disarm(owner any) {}
