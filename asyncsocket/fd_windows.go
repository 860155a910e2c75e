//go:build windows

package asyncsocket

import (
	"fmt"
	"net"

	"golang.org/x/sys/windows"
)

func listenFD(network, addr string) (fd int, laddr net.Addr, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return -1, nil, err
	}
	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("asyncsocket: socket: %w", err)
	}
	_ = windows.SetsockoptInt(sock, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	sa := toSockaddr(tcpAddr)
	if err := windows.Bind(sock, sa); err != nil {
		_ = windows.Closesocket(sock)
		return -1, nil, fmt.Errorf("asyncsocket: bind: %w", err)
	}
	if err := windows.Listen(sock, 128); err != nil {
		_ = windows.Closesocket(sock)
		return -1, nil, fmt.Errorf("asyncsocket: listen: %w", err)
	}
	if err := windows.SetNonblock(sock, true); err != nil {
		_ = windows.Closesocket(sock)
		return -1, nil, err
	}
	bound, err := windows.Getsockname(sock)
	if err != nil {
		_ = windows.Closesocket(sock)
		return -1, nil, err
	}
	return int(sock), sockaddrToAddr(bound), nil
}

func dialFD(network, addr string) (fd int, raddr net.Addr, inProgress bool, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return -1, nil, false, err
	}
	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, nil, false, fmt.Errorf("asyncsocket: socket: %w", err)
	}
	if err := windows.SetNonblock(sock, true); err != nil {
		_ = windows.Closesocket(sock)
		return -1, nil, false, err
	}
	sa := toSockaddr(tcpAddr)
	err = windows.Connect(sock, sa)
	if err == nil {
		return int(sock), tcpAddr, false, nil
	}
	if err == windows.WSAEWOULDBLOCK {
		return int(sock), tcpAddr, true, nil
	}
	_ = windows.Closesocket(sock)
	return -1, nil, false, fmt.Errorf("asyncsocket: connect: %w", err)
}

func toSockaddr(a *net.TCPAddr) windows.Sockaddr {
	sa := &windows.SockaddrInet4{Port: a.Port}
	v4 := a.IP.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], v4)
	return sa
}

func sockaddrToAddr(sa windows.Sockaddr) net.Addr {
	if a, ok := sa.(*windows.SockaddrInet4); ok {
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	}
	return nil
}

func acceptFD(listenerFD int) (fd int, raddr net.Addr, wouldBlock bool, err error) {
	nfd, sa, err := windows.Accept(windows.Handle(listenerFD))
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return -1, nil, true, nil
		}
		return -1, nil, false, err
	}
	_ = windows.SetNonblock(nfd, true)
	return int(nfd), sockaddrToAddr(sa), false, nil
}

func connectErr(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}

func recvFD(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = windows.Read(windows.Handle(fd), buf)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func sendFD(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = windows.Write(windows.Handle(fd), buf)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func recvFromFD(fd int, buf []byte) (n int, from net.Addr, wouldBlock bool, err error) {
	n, sa, err := windows.Recvfrom(windows.Handle(fd), buf, 0)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, nil, true, nil
		}
		return 0, nil, false, err
	}
	return n, sockaddrToAddr(sa), false, nil
}

func sendToFD(fd int, buf []byte, to net.Addr) (n int, wouldBlock bool, err error) {
	udpAddr, ok := to.(*net.UDPAddr)
	if !ok {
		return 0, false, fmt.Errorf("asyncsocket: unsupported address type %T", to)
	}
	sa := &windows.SockaddrInet4{Port: udpAddr.Port}
	v4 := udpAddr.IP.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], v4)
	if err := windows.Sendto(windows.Handle(fd), buf, 0, sa); err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return len(buf), false, nil
}

func closeFD(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func setNonblock(fd int) error {
	return windows.SetNonblock(windows.Handle(fd), true)
}
