package scheduler

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-corosock/corolog"
	"github.com/joeycumines/go-corosock/notifier"
)

// Scheduler owns the coroutine table, the ready set, the sleep-timer heap,
// and the notifier. One mutex serializes all four because spawn, Resume,
// and Throw may be called from threads other than the scheduler's own run
// loop goroutine.
type Scheduler struct {
	cfg schedulerConfig
	log corolog.Logger

	notif *notifier.Notifier

	mu      sync.Mutex
	coros   map[uint64]*Coroutine
	ready   []*Coroutine
	sleep   sleepHeap
	nextID  uint64
	current *Coroutine

	shuttingDown bool
	started      bool
	stopped      chan struct{}
}

// Stats is a snapshot of scheduler occupancy, a feature the distilled
// coroutine library dropped but the original exposes for introspection.
type Stats struct {
	Coroutines int
	Ready      int
	Sleeping   int
}

// New constructs a Scheduler with its own notifier. Most callers should use
// the package-level Spawn/Current/Shutdown functions instead, which operate
// on a lazily-initialized process-wide default instance.
func New(opts ...Option) (*Scheduler, error) {
	cfg := resolveOptions(opts)
	n, err := notifier.New(cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler: create notifier: %w", err)
	}
	s := &Scheduler{
		cfg:     cfg,
		log:     cfg.logger,
		notif:   n,
		coros:   make(map[uint64]*Coroutine),
		stopped: make(chan struct{}),
	}
	return s, nil
}

// Notifier exposes the scheduler's notifier so asyncsocket can register
// file descriptors and arm readiness interest against the same instance
// that drives the run loop's poll.
func (s *Scheduler) Notifier() *notifier.Notifier { return s.notif }

// Logger returns the scheduler's configured logger.
func (s *Scheduler) Logger() corolog.Logger { return s.log }

// Start launches the run loop goroutine. Calling it more than once, or
// after Shutdown, is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run()
}

// Spawn assigns a fresh id, inserts the coroutine into the table in state
// Scheduled, appends it to the ready set, and wakes the notifier if ready
// transitioned from empty, matching the standard spawn contract.
func (s *Scheduler) Spawn(task Task, opts ...SpawnOption) *Coroutine {
	cfg := resolveSpawnOptions(opts)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	c := &Coroutine{
		id:     id,
		name:   cfg.name,
		sched:  s,
		awaken: make(chan struct{}, 1),
		parked: make(chan struct{}, 1),
		done:   make(chan struct{}),
		state:  Scheduled,
		task:   task,
	}
	s.coros[id] = c
	wasEmpty := len(s.ready) == 0
	s.ready = append(s.ready, c)
	s.mu.Unlock()

	s.log.Log(corolog.LevelDebug, "scheduler", "spawned coroutine", corolog.Fields{"id": id, "name": cfg.name})

	go c.loop()

	if wasEmpty {
		_ = s.notif.Wake()
	}
	s.Start()
	return c
}

// Current returns the coroutine presently Running on this scheduler, or
// nil if called from outside any coroutine's goroutine.
func (s *Scheduler) Current() *Coroutine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stats reports current occupancy, a feature original_source/asyncoro.py
// exposes (Scheduler.dump) that the distilled spec omitted.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Coroutines: len(s.coros), Ready: len(s.ready), Sleeping: len(s.sleep)}
}

// Shutdown sets a terminate flag, wakes the loop, and -- once the loop has
// exited -- terminates every remaining coroutine so their goroutines can
// unwind via ordinary Go defers (generator-stack unwinding has no analogue
// here; see Coroutine.Terminate).
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	started := s.started
	s.mu.Unlock()

	if !started {
		close(s.stopped)
	} else {
		_ = s.notif.Wake()
		<-s.stopped
	}

	s.mu.Lock()
	remaining := make([]*Coroutine, 0, len(s.coros))
	for _, c := range s.coros {
		remaining = append(remaining, c)
	}
	s.mu.Unlock()

	for _, c := range remaining {
		_ = c.Terminate()
		s.drainTerminated(c)
	}
	_ = s.notif.Close()
}

// drainTerminated drives a single coroutine directly through its
// awaken/parked handshake, bypassing the (now-stopped) run loop's ready
// gate. It is only used during Shutdown: every remaining coroutine has
// already had Exit thrown into it and must be given its final turns to
// unwind via ordinary Go defers.
func (s *Scheduler) drainTerminated(c *Coroutine) {
	for {
		select {
		case <-c.Done():
			return
		default:
		}

		s.mu.Lock()
		if c.state != Scheduled {
			// Not ready to step (e.g. suspended again despite Exit, which a
			// misbehaving Task could do); nothing more we can safely drive.
			s.mu.Unlock()
			return
		}
		c.state = Running
		s.mu.Unlock()

		c.awaken <- struct{}{}

		select {
		case <-c.parked:
			// The Task suspended again after observing Exit; force another
			// Exit so it gets a chance to finish unwinding.
			_ = s.terminate(c)
		case <-c.done:
			return
		}
	}
}

// Join blocks until every coroutine spawned on this scheduler has finished.
func (s *Scheduler) Join() {
	for {
		s.mu.Lock()
		if len(s.coros) == 0 {
			s.mu.Unlock()
			return
		}
		var c *Coroutine
		for _, v := range s.coros {
			c = v
			break
		}
		s.mu.Unlock()
		<-c.Done()
	}
}

// run is the scheduling loop: one goroutine, owning every mutation of
// ready/sleep/coros between poll cycles.
func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		if s.shuttingDown {
			s.mu.Unlock()
			close(s.stopped)
			return
		}
		readyEmpty := len(s.ready) == 0
		s.mu.Unlock()

		// Nonblocking drain, step 1 of the scheduling loop.
		_ = s.notif.Poll(0)

		if readyEmpty {
			timeout := s.nextDeadline()
			_ = s.notif.Poll(timeout)
		}
		s.drainExpiredSleepTimers()

		batch := s.snapshotReady()
		for _, c := range batch {
			s.stepOnce(c)
		}
	}
}

// nextDeadline computes the time until the earliest pending sleep timer,
// capped at cfg.maxPoll (including when no sleep timer is pending at all, so
// WithMaxPollInterval still bounds a single blocking poll). The notifier
// further clamps this against the earliest socket-timeout deadline.
func (s *Scheduler) nextDeadline() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sleep.peekDeadline()
	if !ok {
		return s.cfg.maxPoll
	}
	until := time.Until(d)
	if until < 0 {
		return 0
	}
	if until > s.cfg.maxPoll {
		return s.cfg.maxPoll
	}
	return until
}

// drainExpiredSleepTimers moves sleeping coroutines whose deadline has
// passed (within a small slack) back to ready. Stale entries (the
// coroutine's live deadline no longer matches the popped entry, because it
// was resumed or thrown into out of band) are discarded silently.
//
// A coroutine can reach here with a pendingErr already staged (a throw or
// terminate that landed while the coroutine was Running, before it called
// Sleep; see beginSuspend) even though beginSuspend's own check normally
// prevents this. Timer expiry must not clobber that exception: a pending
// exception is consumed on the coroutine's very next step regardless of
// why it woke up, so only pendingValue (the timeout's own "woke up with no
// value" delivery) is touched here.
func (s *Scheduler) drainExpiredSleepTimers() {
	now := time.Now().Add(s.cfg.slack)
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		d, ok := s.sleep.peekDeadline()
		if !ok || d.After(now) {
			return
		}
		entry := heap.Pop(&s.sleep).(sleepEntry)
		c := entry.coro
		if c.state != Suspended || !c.deadline.Equal(entry.deadline) {
			continue // stale
		}
		c.deadline = time.Time{}
		if c.pendingErr == nil {
			c.pendingValue = nil
		}
		c.state = Scheduled
		s.ready = append(s.ready, c)
	}
}

func (s *Scheduler) snapshotReady() []*Coroutine {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.ready
	s.ready = nil
	return batch
}

// stepOnce runs one coroutine until it next suspends or finishes. Because
// each Coroutine has its own dedicated goroutine (see Coroutine.loop), a
// "step" here is not bounded to one generator advance the way the original's
// step is -- it runs every Task statement between two suspension points,
// which are exactly the calls a Task makes into Suspend/Sleep or an
// asyncsocket operation built on them.
func (s *Scheduler) stepOnce(c *Coroutine) {
	s.mu.Lock()
	if c.state != Scheduled {
		s.mu.Unlock()
		return
	}
	c.state = Running
	s.current = c
	s.mu.Unlock()

	c.awaken <- struct{}{}

	select {
	case <-c.parked:
	case <-c.done:
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}
