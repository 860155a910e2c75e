//go:build windows

package notifier

import "golang.org/x/sys/windows"

// newWakeupFDs returns a connected pair of loopback UDP sockets. WSAPoll
// only operates on sockets (there is no Windows equivalent of a Unix pipe
// fd usable with it), so the wakeup mechanism here is a tiny datagram
// socket pair rather than an IOCP PostQueuedCompletionStatus call -- see
// the poller_windows.go doc comment for why this module uses WSAPoll
// instead of IOCP.
func newWakeupFDs() (readFD, writeFD int, err error) {
	readSock, err := windows.Socket(windows.AF_INET, windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return -1, -1, err
	}
	readAddr := &windows.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Bind(readSock, readAddr); err != nil {
		_ = windows.Closesocket(readSock)
		return -1, -1, err
	}
	boundAddr, err := windows.Getsockname(readSock)
	if err != nil {
		_ = windows.Closesocket(readSock)
		return -1, -1, err
	}
	boundPort := boundAddr.(*windows.SockaddrInet4).Port

	writeSock, err := windows.Socket(windows.AF_INET, windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		_ = windows.Closesocket(readSock)
		return -1, -1, err
	}
	dest := &windows.SockaddrInet4{Port: boundPort, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Connect(writeSock, dest); err != nil {
		_ = windows.Closesocket(readSock)
		_ = windows.Closesocket(writeSock)
		return -1, -1, err
	}

	if err := windows.SetNonblock(readSock, true); err != nil {
		_ = windows.Closesocket(readSock)
		_ = windows.Closesocket(writeSock)
		return -1, -1, err
	}
	if err := windows.SetNonblock(writeSock, true); err != nil {
		_ = windows.Closesocket(readSock)
		_ = windows.Closesocket(writeSock)
		return -1, -1, err
	}

	return int(readSock), int(writeSock), nil
}

func wakeupSignal(writeFD int) error {
	_, err := windows.Write(windows.Handle(writeFD), []byte{1})
	if err == windows.WSAEWOULDBLOCK {
		return nil
	}
	return err
}

func wakeupDrain(readFD int) error {
	var buf [64]byte
	for {
		_, err := windows.Read(windows.Handle(readFD), buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func wakeupClose(readFD, writeFD int) error {
	if readFD >= 0 {
		_ = windows.Closesocket(windows.Handle(readFD))
	}
	if writeFD >= 0 && writeFD != readFD {
		_ = windows.Closesocket(windows.Handle(writeFD))
	}
	return nil
}
