//go:build windows

package notifier

import (
	"sync"

	"golang.org/x/sys/windows"
)

const maxFDs = 65536

type fdInfo struct {
	callback Callback
	events   Events
	active   bool
}

// poller uses WSAPoll, the Winsock equivalent of POSIX poll(2), rather than
// an IOCP completion port. IOCP's natural unit of work is a per-operation
// OVERLAPPED completion (and datagram sockets need a dedicated helper
// thread alongside it), a substantially larger undertaking than this
// module's readiness-based AsyncSocket operations need; WSAPoll gives the
// same "(fd, event_mask) list" shape the POSIX backends return, so the
// dispatch loop in notifier.go is identical across platforms. See
// DESIGN.md for the tradeoff.
type poller struct {
	mu     sync.RWMutex
	fds    map[int]*fdInfo
	closed bool
}

func newPoller() (*poller, error) {
	return &poller{fds: make(map[int]*fdInfo)}, nil
}

func (p *poller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *poller) Register(fd int, events Events, cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = &fdInfo{callback: cb, events: events, active: true}
	return nil
}

func (p *poller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	return nil
}

func (p *poller) Modify(fd int, events Events) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	info.events = events
	return nil
}

func (p *poller) Wait(timeoutMs int) (int, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return 0, ErrClosed
	}
	pollFds := make([]windows.WSAPollFD, 0, len(p.fds))
	callbacks := make(map[int]Callback, len(p.fds))
	for fd, info := range p.fds {
		if !info.active || info.callback == nil {
			continue
		}
		var want int16
		if info.events&Readable != 0 {
			want |= windows.POLLRDNORM
		}
		if info.events&Writable != 0 {
			want |= windows.POLLWRNORM
		}
		pollFds = append(pollFds, windows.WSAPollFD{Fd: windows.Handle(fd), Events: want})
		callbacks[fd] = info.callback
	}
	p.mu.RUnlock()

	if len(pollFds) == 0 {
		// No registered fds: nothing could end an infinite wait, so it is
		// turned into an immediate poll. In practice notifier.go registers
		// the control socket before this is ever reached.
		if timeoutMs < 0 {
			timeoutMs = 0
		}
	}

	n, err := windows.WSAPoll(pollFds, int32(timeoutMs))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}

	fired := 0
	for _, pf := range pollFds {
		if pf.REvents == 0 {
			continue
		}
		var ev Events
		if pf.REvents&(windows.POLLRDNORM|windows.POLLIN) != 0 {
			ev |= Readable
		}
		if pf.REvents&(windows.POLLWRNORM|windows.POLLOUT) != 0 {
			ev |= Writable
		}
		if pf.REvents&windows.POLLHUP != 0 {
			ev |= Hangup
		}
		if pf.REvents&windows.POLLERR != 0 {
			ev |= ErrorEvent
		}
		if ev == 0 {
			continue
		}
		if cb, ok := callbacks[int(pf.Fd)]; ok {
			cb(ev)
			fired++
		}
	}
	return fired, nil
}
