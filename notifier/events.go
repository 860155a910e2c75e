package notifier

// Events is the readiness/error mask a registered fd is interested in, or
// was observed with, ("interest" field) and section
// 4.2 ("Event delivery").
type Events uint32

const (
	// Readable indicates the file descriptor is ready to read, or (for a
	// listening socket) has a connection to accept.
	Readable Events = 1 << iota
	// Writable indicates the file descriptor is ready to write, or (for a
	// connecting socket) the connect attempt completed.
	Writable
	// ErrorEvent indicates an error condition was reported for the fd.
	ErrorEvent
	// Hangup indicates the peer closed its end of the connection.
	Hangup
)

// Callback is the per-fd continuation the poller backend invokes on
// readiness -- the task (on a socket).
type Callback func(Events)
