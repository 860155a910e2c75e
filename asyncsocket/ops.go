package asyncsocket

import (
	"fmt"
	"net"

	"github.com/joeycumines/go-corosock/notifier"
)

// Recv reads up to len(buf) bytes, suspending the calling coroutine until
// the socket is readable.
func (s *AsyncSocket) Recv(buf []byte) (int, error) {
	v, err := s.asyncOp(notifier.Readable, 0, func() (any, bool, error) {
		n, wouldBlock, err := recvFD(s.fd, buf)
		return n, wouldBlock, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Send writes up to len(buf) bytes, suspending the calling coroutine until
// the socket is writable. Like a raw non-blocking write, a short write is
// possible; use SendAll to write exactly len(buf) bytes.
func (s *AsyncSocket) Send(buf []byte) (int, error) {
	v, err := s.asyncOp(notifier.Writable, 0, func() (any, bool, error) {
		n, wouldBlock, err := sendFD(s.fd, buf)
		return n, wouldBlock, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// RecvFrom reads a single datagram, suspending until one is available.
func (s *AsyncSocket) RecvFrom(buf []byte) (int, net.Addr, error) {
	type result struct {
		n    int
		addr net.Addr
	}
	v, err := s.asyncOp(notifier.Readable, 0, func() (any, bool, error) {
		n, addr, wouldBlock, err := recvFromFD(s.fd, buf)
		return result{n, addr}, wouldBlock, err
	})
	if err != nil {
		return 0, nil, err
	}
	r := v.(result)
	return r.n, r.addr, nil
}

// SendTo writes a single datagram to addr, suspending until the socket is
// writable.
func (s *AsyncSocket) SendTo(buf []byte, addr net.Addr) (int, error) {
	v, err := s.asyncOp(notifier.Writable, 0, func() (any, bool, error) {
		n, wouldBlock, err := sendToFD(s.fd, buf, addr)
		return n, wouldBlock, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// RecvAll accumulates chunks until exactly n bytes are delivered. A
// zero-length chunk observed before n is reached is a fatal remote close,
// matching the standard recvall contract.
func (s *AsyncSocket) RecvAll(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := make([]byte, n-len(out))
		got, err := s.Recv(chunk)
		if err != nil {
			return nil, err
		}
		if got == 0 {
			return nil, fmt.Errorf("asyncsocket: %w", errShortRead)
		}
		out = append(out, chunk[:got]...)
	}
	return out, nil
}

// SendAll advances a cursor through data until exhausted; partial writes
// are normal and retried. Returns nil on full completion.
func (s *AsyncSocket) SendAll(data []byte) error {
	for len(data) > 0 {
		n, err := s.Send(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Accept produces a new connected AsyncSocket, suspending until a
// connection is pending.
func (s *AsyncSocket) Accept() (*AsyncSocket, error) {
	v, err := s.asyncOp(notifier.Readable, 0, func() (any, bool, error) {
		fd, raddr, wouldBlock, err := acceptFD(s.fd)
		if wouldBlock || err != nil {
			return nil, wouldBlock, err
		}
		if err := setNonblock(fd); err != nil {
			_ = closeFD(fd)
			return nil, false, err
		}
		return struct {
			fd    int
			raddr net.Addr
		}{fd, raddr}, false, nil
	})
	if err != nil {
		return nil, err
	}
	r := v.(struct {
		fd    int
		raddr net.Addr
	})
	return New(s.notif, r.fd, s.laddr, r.raddr)
}

// Connect initiates a non-blocking connect to addr, returning an
// AsyncSocket once the connection succeeds (or an error with SO_ERROR
// details on failure).
func Connect(notif *notifier.Notifier, network, addr string) (*AsyncSocket, error) {
	fd, raddr, inProgress, err := dialFD(network, addr)
	if err != nil {
		return nil, err
	}
	s, err := New(notif, fd, nil, raddr)
	if err != nil {
		_ = closeFD(fd)
		return nil, err
	}
	if !inProgress {
		return s, nil
	}
	_, err = s.asyncOp(notifier.Writable, 0, func() (any, bool, error) {
		return nil, false, connectErr(s.fd)
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
