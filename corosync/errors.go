package corosync

import "errors"

// ErrInvalidUse is returned when Lock or Condition is used outside its
// documented protocol (e.g. releasing a lock you don't hold). This is
// fatal/assertion-like: callers should treat it as a bug, not a retryable
// condition.
var ErrInvalidUse = errors.New("corosync: invalid use")
