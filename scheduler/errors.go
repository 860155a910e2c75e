package scheduler

import "errors"

// Sentinel errors (wrapped with fmt.Errorf/%w where a cause needs
// attaching).
var (
	// ErrSchedulerTerminated names the state after Shutdown has completed.
	// No function in this package returns it: Spawn after Shutdown still
	// returns a Coroutine, and that coroutine is never run.
	ErrSchedulerTerminated = errors.New("scheduler: terminated")

	// ErrInvalidUse is returned when an API is used outside its documented
	// protocol (e.g. Suspend called from a goroutine that isn't the
	// coroutine currently Running). This is fatal/assertion-like -- callers
	// are expected to treat it as a programmer error, not something to
	// retry.
	ErrInvalidUse = errors.New("scheduler: invalid use of coroutine API")

	// ErrNotSuspended describes a target coroutine that is not suspended.
	// Resume and Throw do not return it: they report a state that does not
	// accept the operation as ErrInvalidUse (or ErrAlreadyDone once the
	// coroutine has finished).
	ErrNotSuspended = errors.New("scheduler: coroutine is not suspended")

	// ErrAlreadyDone is returned by Resume/Throw/Terminate against a
	// coroutine that has already finished.
	ErrAlreadyDone = errors.New("scheduler: coroutine is already done")

	// ErrInvalidTimeout is returned by Suspend for a negative (and
	// non-zero) timeout; only "no deadline" (0) and positive durations are
	// accepted.
	ErrInvalidTimeout = errors.New("scheduler: invalid suspend timeout")
)

// Exit is the reserved cancellation error. Coroutine.Terminate injects Exit;
// it is not catchable the way an ordinary error is -- Suspend still returns
// it to the coroutine body (so deferred cleanup can run), but a coroutine
// that returns it from its Task is finished as cancelled, not failed: its
// completion is logged at debug level rather than as a warning.
var Exit = errors.New("scheduler: coroutine terminated")
