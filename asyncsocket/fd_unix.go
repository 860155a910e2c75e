//go:build linux || darwin

package asyncsocket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenFD creates a non-blocking listening socket bound to addr.
func listenFD(network, addr string) (fd int, laddr net.Addr, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return -1, nil, err
	}
	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	sock, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("asyncsocket: socket: %w", err)
	}
	_ = unix.SetsockoptInt(sock, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	sa, err := toSockaddr(domain, tcpAddr.IP, tcpAddr.Port)
	if err != nil {
		_ = unix.Close(sock)
		return -1, nil, err
	}
	if err := unix.Bind(sock, sa); err != nil {
		_ = unix.Close(sock)
		return -1, nil, fmt.Errorf("asyncsocket: bind: %w", err)
	}
	if err := unix.Listen(sock, 128); err != nil {
		_ = unix.Close(sock)
		return -1, nil, fmt.Errorf("asyncsocket: listen: %w", err)
	}
	bound, err := unix.Getsockname(sock)
	if err != nil {
		_ = unix.Close(sock)
		return -1, nil, err
	}
	return sock, sockaddrToAddr(bound), nil
}

// dialFD creates a non-blocking socket and starts (but does not wait for)
// a connect to addr. When connect reports unix.EINPROGRESS (the expected
// non-blocking path) it returns inProgress == true with a nil error.
func dialFD(network, addr string) (fd int, raddr net.Addr, inProgress bool, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return -1, nil, false, err
	}
	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	sock, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, false, fmt.Errorf("asyncsocket: socket: %w", err)
	}
	sa, err := toSockaddr(domain, tcpAddr.IP, tcpAddr.Port)
	if err != nil {
		_ = unix.Close(sock)
		return -1, nil, false, err
	}
	err = unix.Connect(sock, sa)
	if err == nil {
		return sock, tcpAddr, false, nil
	}
	if err == unix.EINPROGRESS {
		return sock, tcpAddr, true, nil
	}
	_ = unix.Close(sock)
	return -1, nil, false, fmt.Errorf("asyncsocket: connect: %w", err)
}

func toSockaddr(domain int, ip net.IP, port int) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		var sa unix.SockaddrInet6
		sa.Port = port
		copy(sa.Addr[:], ip.To16())
		return &sa, nil
	}
	var sa unix.SockaddrInet4
	sa.Port = port
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], v4)
	return &sa, nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return nil
	}
}

// acceptFD performs a non-blocking accept4. wouldBlock == true with a nil
// error (accept4 reported unix.EAGAIN) signals "not ready yet" to the
// caller's retry loop.
func acceptFD(listenerFD int) (fd int, raddr net.Addr, wouldBlock bool, err error) {
	nfd, sa, err := unix.Accept4(listenerFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return -1, nil, true, nil
		}
		return -1, nil, false, err
	}
	return nfd, sockaddrToAddr(sa), false, nil
}

// connectErr inspects SO_ERROR after a writable event on a connecting
// socket, matching the standard connect contract.
func connectErr(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

func recvFD(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func sendFD(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func recvFromFD(fd int, buf []byte) (n int, from net.Addr, wouldBlock bool, err error) {
	n, sa, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN {
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
	domain := unix.AF_INET
	if udpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	sa, err := toSockaddr(domain, udpAddr.IP, udpAddr.Port)
	if err != nil {
		return 0, false, err
	}
	if err := unix.Sendto(fd, buf, 0, sa); err != nil {
		if err == unix.EAGAIN {
			return 0, true, nil
		}
		return 0, false, err
	}
	return len(buf), false, nil
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
