package scheduler

import (
	"container/heap"
	"time"
)

// sleepEntry is a (deadline, owner) timer entry for Coroutine.Suspend
// timeouts, ("Timer entry"). It is a min-heap node;
// staleness is detected by comparing entry.deadline against the owning
// Coroutine's current deadline field rather than by removing arbitrary heap
// items; stale entries are simply discarded when popped.
type sleepEntry struct {
	deadline time.Time
	coro     *Coroutine
}

type sleepHeap []sleepEntry

func (h sleepHeap) Len() int            { return len(h) }
func (h sleepHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h sleepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sleepHeap) Push(x any)         { *h = append(*h, x.(sleepEntry)) }
func (h *sleepHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// peekDeadline returns the earliest pending deadline, if any.
func (h sleepHeap) peekDeadline() (time.Time, bool) {
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[0].deadline, true
}

var _ = heap.Interface(&sleepHeap{})
