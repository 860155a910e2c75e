package scheduler

import "sync"

var (
	defaultMu  sync.Mutex
	defaultSch *Scheduler
)

// Default returns the process-wide Scheduler, initializing it lazily on
// first call with opts (subsequent calls ignore opts once initialized): the
// scheduler is a singleton whose lifetime spans the process. Most
// applications should use the package-level Spawn/Current/Shutdown below
// instead of calling this directly.
func Default(opts ...Option) *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSch == nil {
		sch, err := New(opts...)
		if err != nil {
			// The process-wide default must always be constructible; a
			// failure here means the host has no usable I/O notifier
			// backend, which every supported platform provides.
			panic(err)
		}
		defaultSch = sch
	}
	return defaultSch
}

// Spawn spawns a coroutine on the process-wide default Scheduler.
func Spawn(task Task, opts ...SpawnOption) *Coroutine {
	return Default().Spawn(task, opts...)
}

// Current returns the coroutine running on the process-wide default
// Scheduler, or nil outside any coroutine.
func Current() *Coroutine {
	defaultMu.Lock()
	sch := defaultSch
	defaultMu.Unlock()
	if sch == nil {
		return nil
	}
	return sch.Current()
}

// Shutdown tears down the process-wide default Scheduler, if one has been
// created.
func Shutdown() {
	defaultMu.Lock()
	sch := defaultSch
	defaultMu.Unlock()
	if sch != nil {
		sch.Shutdown()
	}
}
