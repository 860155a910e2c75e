package asyncsocket

import "errors"

// Error kinds returned by AsyncSocket operations.
var (
	// ErrNotInCoroutine is returned when an async operation is attempted
	// other than from a coroutine's own goroutine (scheduler.Current()
	// returned nil).
	ErrNotInCoroutine = errors.New("asyncsocket: must be called from a coroutine")

	// ErrOperationInProgress is returned when a second async operation is
	// attempted while one is already outstanding on the socket: only one
	// async operation may be outstanding per socket at any time.
	ErrOperationInProgress = errors.New("asyncsocket: operation already in progress")

	// ErrTimedOut is thrown into a blocked coroutine when a socket's
	// per-operation deadline elapses before completion.
	ErrTimedOut = errors.New("asyncsocket: operation timed out")

	// ErrClosed is returned by operations on an already-closed socket.
	ErrClosed = errors.New("asyncsocket: socket closed")

	// errShortRead is the internal sentinel recvAll/recvMessage use to
	// signal a graceful disconnect; callers observe this as a nil result,
	// not an error, matching the standard recv_message contract.
	errShortRead = errors.New("asyncsocket: short read (disconnected)")
)
