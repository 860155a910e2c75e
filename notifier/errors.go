package notifier

import "errors"

// Standard errors returned by poller and notifier operations.
var (
	ErrFDOutOfRange        = errors.New("notifier: fd out of range")
	ErrFDAlreadyRegistered = errors.New("notifier: fd already registered")
	ErrFDNotRegistered     = errors.New("notifier: fd not registered")
	ErrClosed              = errors.New("notifier: closed")
)
