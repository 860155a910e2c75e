package asyncsocket

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecvMessage reads a length-prefixed message: a 4-byte big-endian length
// header followed by the payload. A short read of either part (remote
// closed mid-frame) yields (nil, nil) -- the "disconnected" sentinel, not
// an error --.
func (s *AsyncSocket) RecvMessage() ([]byte, error) {
	header, err := s.RecvAll(4)
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
	payload, err := s.RecvAll(int(length))
	if err != nil {
		if errors.Is(err, errShortRead) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// SendMessage writes data as a length-prefixed frame: a 4-byte big-endian
// length followed by data, via a single SendAll.
func (s *AsyncSocket) SendMessage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("asyncsocket: cannot send a zero-length message")
	}
	framed := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(framed, uint32(len(data)))
	copy(framed[4:], data)
	return s.SendAll(framed)
}
