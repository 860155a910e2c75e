//go:build darwin

package notifier

import "golang.org/x/sys/unix"

// newWakeupFDs returns a self-pipe: writing a byte to writeFD makes readFD
// readable, draining readFD consumes it. kqueue has no eventfd equivalent,
// so this is the standard BSD wakeup pattern.
func newWakeupFDs() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return -1, -1, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return fds[0], fds[1], nil
}

func wakeupSignal(writeFD int) error {
	_, err := unix.Write(writeFD, []byte{1})
	if err == unix.EAGAIN {
		// Pipe buffer already has a pending byte: a wake is already queued.
		return nil
	}
	return err
}

func wakeupDrain(readFD int) error {
	var buf [64]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func wakeupClose(readFD, writeFD int) error {
	if readFD >= 0 {
		_ = unix.Close(readFD)
	}
	if writeFD >= 0 && writeFD != readFD {
		_ = unix.Close(writeFD)
	}
	return nil
}
