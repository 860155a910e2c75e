//go:build darwin

package notifier

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const maxFDs = 65536

type fdInfo struct {
	callback Callback
	events   Events
	active   bool
}

// poller wraps a kqueue instance (the BSD/Darwin kernel-queue backend).
type poller struct {
	kq       int32
	eventBuf [256]unix.Kevent_t
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPoller() (*poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &poller{kq: int32(kq), fds: make([]fdInfo, maxFDs)}, nil
}

func (p *poller) Close() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

func (p *poller) Register(fd int, events Events, cb Callback) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.fdMu.Unlock()

	changes := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(int(p.kq), changes, nil, nil); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *poller) Unregister(fd int) error {
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	prev := p.fds[fd].events
	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	changes := eventsToKevents(fd, prev, unix.EV_DELETE)
	_, _ = unix.Kevent(int(p.kq), changes, nil, nil)
	return nil
}

func (p *poller) Modify(fd int, events Events) error {
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	prev := p.fds[fd].events
	p.fds[fd].events = events
	p.fdMu.Unlock()

	// Remove filters no longer wanted, add filters newly wanted; kqueue has
	// no in-place "modify" the way epoll does.
	if prev&Readable != 0 && events&Readable == 0 {
		_, _ = unix.Kevent(int(p.kq), []unix.Kevent_t{mkKevent(fd, unix.EVFILT_READ, unix.EV_DELETE)}, nil, nil)
	}
	if prev&Writable != 0 && events&Writable == 0 {
		_, _ = unix.Kevent(int(p.kq), []unix.Kevent_t{mkKevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE)}, nil, nil)
	}
	var adds []unix.Kevent_t
	if events&Readable != 0 && prev&Readable == 0 {
		adds = append(adds, mkKevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR))
	}
	if events&Writable != 0 && prev&Writable == 0 {
		adds = append(adds, mkKevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR))
	}
	if len(adds) > 0 {
		_, err := unix.Kevent(int(p.kq), adds, nil, nil)
		return err
	}
	return nil
}

func (p *poller) Wait(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 || fd >= len(p.fds) {
			continue
		}
		p.fdMu.RLock()
		info := p.fds[fd]
		p.fdMu.RUnlock()
		if !info.active || info.callback == nil {
			continue
		}
		info.callback(keventToEvents(&p.eventBuf[i]))
	}
	return n, nil
}

func mkKevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
}

func eventsToKevents(fd int, events Events, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if events&Readable != 0 {
		out = append(out, mkKevent(fd, unix.EVFILT_READ, flags))
	}
	if events&Writable != 0 {
		out = append(out, mkKevent(fd, unix.EVFILT_WRITE, flags))
	}
	return out
}

func keventToEvents(ev *unix.Kevent_t) Events {
	var events Events
	switch ev.Filter {
	case unix.EVFILT_READ:
		events |= Readable
	case unix.EVFILT_WRITE:
		events |= Writable
	}
	if ev.Flags&unix.EV_EOF != 0 {
		events |= Hangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		events |= ErrorEvent
	}
	return events
}
