//go:build linux

package notifier

import "golang.org/x/sys/unix"

// newWakeupFDs returns an eventfd as both the read and write end: writing
// any 8-byte value increments the kernel counter and makes the fd readable,
// reading drains it back to zero.
func newWakeupFDs() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func wakeupSignal(writeFD int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(writeFD, buf[:])
	if err == unix.EAGAIN {
		// Counter already non-zero: a wake is already pending.
		return nil
	}
	return err
}

func wakeupDrain(readFD int) error {
	var buf [8]byte
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
	return nil
}
