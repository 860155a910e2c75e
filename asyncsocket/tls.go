package asyncsocket

import (
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// AsyncSocket implements net.Conn's blocking-shaped Read/Write/deadline
// methods by delegating to the suspension-based Recv/SendAll primitives
// above. This lets the standard library's crypto/tls package -- which
// expects an ordinary net.Conn and drives its own want-read/want-write
// retries internally by calling Read/Write again -- perform a TLS
// handshake and encrypted I/O over an AsyncSocket without this package
// needing to hand-roll OpenSSL-style WantRead/WantWrite handshake state
// (the TLS-again error kind has no analogue here: it is
// absorbed entirely inside crypto/tls's own Conn.Read/Write retry loop).
var _ net.Conn = (*AsyncSocket)(nil)

// Read performs a single suspension-based Recv, satisfying io.Reader.
func (s *AsyncSocket) Read(p []byte) (int, error) {
	n, err := s.Recv(p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("asyncsocket: %w", net.ErrClosed)
	}
	return n, nil
}

// Write loops Send until all of p is written, satisfying io.Writer.
func (s *AsyncSocket) Write(p []byte) (int, error) {
	if err := s.SendAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetDeadline, SetReadDeadline, and SetWriteDeadline all map onto the same
// per-operation timeout (SetTimeout); this module does not distinguish
// read- and write-side deadlines the way net.Conn's interface allows.
func (s *AsyncSocket) SetDeadline(t time.Time) error {
	if t.IsZero() {
		s.SetTimeout(0)
		return nil
	}
	s.SetTimeout(time.Until(t))
	return nil
}

func (s *AsyncSocket) SetReadDeadline(t time.Time) error  { return s.SetDeadline(t) }
func (s *AsyncSocket) SetWriteDeadline(t time.Time) error { return s.SetDeadline(t) }

// TLSSocket wraps a handshaked *tls.Conn layered over an AsyncSocket,
// exposing the same suspension-based surface (RecvAll/SendAll/framing) as
// the plaintext socket.
type TLSSocket struct {
	conn *tls.Conn
	sock *AsyncSocket
}

// Handshake performs the TLS client handshake over sock, suspending the
// calling coroutine on every Read/Write crypto/tls issues internally.
func Handshake(sock *AsyncSocket, cfg *tls.Config) (*TLSSocket, error) {
	conn := tls.Client(sock, cfg)
	if err := conn.Handshake(); err != nil {
		return nil, fmt.Errorf("asyncsocket: tls handshake: %w", err)
	}
	return &TLSSocket{conn: conn, sock: sock}, nil
}

// HandshakeServer performs the TLS server-side handshake over sock, for
// use after Accept. Client-certificate checking is configured through
// cfg.ClientAuth; the socket itself carries no TLS settings.
func HandshakeServer(sock *AsyncSocket, cfg *tls.Config) (*TLSSocket, error) {
	conn := tls.Server(sock, cfg)
	if err := conn.Handshake(); err != nil {
		return nil, fmt.Errorf("asyncsocket: tls handshake: %w", err)
	}
	return &TLSSocket{conn: conn, sock: sock}, nil
}

// Recv reads up to len(buf) bytes of decrypted application data.
func (t *TLSSocket) Recv(buf []byte) (int, error) {
	n, err := t.conn.Read(buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SendAll writes all of data as decrypted application data, encrypted and
// flushed by crypto/tls internally.
func (t *TLSSocket) SendAll(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

// RecvAll accumulates decrypted data until exactly n bytes are delivered.
func (t *TLSSocket) RecvAll(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := make([]byte, n-len(out))
		got, err := t.conn.Read(chunk)
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

// RecvMessage mirrors AsyncSocket.RecvMessage over the encrypted channel.
func (t *TLSSocket) RecvMessage() ([]byte, error) {
	header, err := t.RecvAll(4)
	if err != nil {
		if errors.Is(err, errShortRead) {
			return nil, nil
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)
	if length == 0 {
		return nil, fmt.Errorf("asyncsocket: zero-length message frame")
	}
	payload, err := t.RecvAll(int(length))
	if err != nil {
		if errors.Is(err, errShortRead) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// SendMessage mirrors AsyncSocket.SendMessage over the encrypted channel.
func (t *TLSSocket) SendMessage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("asyncsocket: cannot send a zero-length message")
	}
	framed := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(framed, uint32(len(data)))
	copy(framed[4:], data)
	return t.SendAll(framed)
}

// Close closes the TLS session and the underlying socket.
func (t *TLSSocket) Close() error {
	_ = t.conn.Close()
	return t.sock.Close()
}
