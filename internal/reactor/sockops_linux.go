//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// Socket is a thin, typed wrapper over the raw file descriptor of a TCP
// socket. It owns no lifetime semantics beyond
// Close; ownership of when to call Close belongs to whichever higher-level
// object (Acceptor, Connector, TcpConnection) created the descriptor.
type Socket struct {
	fd int
}

// NewSocket wraps an already-created descriptor.
func NewSocket(fd int) Socket { return Socket{fd: fd} }

// Fd returns the raw descriptor.
func (s Socket) Fd() int { return s.fd }

// createNonblockingSocket creates a non-blocking TCP socket for the given
// address family.
func createNonblockingSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// Bind binds the socket to addr.
func (s Socket) Bind(addr InetAddress) error {
	return unix.Bind(s.fd, addr.addr)
}

// Listen marks the socket as a listening socket.
func (s Socket) Listen() error {
	return unix.Listen(s.fd, unix.SOMAXCONN)
}

// Accept accepts one pending connection, returning the new non-blocking
// descriptor and the peer's address. Mirrors accept4 with SOCK_NONBLOCK so
// the accepted socket never needs a separate fcntl call.
func (s Socket) Accept() (int, InetAddress, error) {
	connfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, InetAddress{}, err
	}
	return connfd, inetAddressFromSockaddr(sa), nil
}

// Connect initiates a connection; on a non-blocking socket this returns
// immediately with EINPROGRESS in the common case.
func (s Socket) Connect(addr InetAddress) error {
	return unix.Connect(s.fd, addr.addr)
}

// ShutdownWrite half-closes the write side of the socket.
func (s Socket) ShutdownWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

// Close closes the descriptor.
func (s Socket) Close() error {
	return unix.Close(s.fd)
}

// SetReuseAddr toggles SO_REUSEADDR.
func (s Socket) SetReuseAddr(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(on))
}

// SetReusePort toggles SO_REUSEPORT.
func (s Socket) SetReusePort(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolToInt(on))
}

// SetKeepAlive toggles SO_KEEPALIVE.
func (s Socket) SetKeepAlive(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on))
}

// SetTcpNoDelay toggles TCP_NODELAY (Nagle's algorithm), opt-in per connection.
func (s Socket) SetTcpNoDelay(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on))
}

// setNonblock toggles O_NONBLOCK directly on any descriptor. Nothing in the
// package calls it at present.
func setNonblock(fd int, on bool) error {
	return unix.SetNonblock(fd, on)
}

// SoError retrieves and clears the socket's pending error via
// getsockopt(SO_ERROR), used by the Connector to classify a write-ready
// notification on a connecting socket.
func (s Socket) SoError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// LocalAddress returns the socket's local address via getsockname.
func (s Socket) LocalAddress() (InetAddress, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return InetAddress{}, err
	}
	return inetAddressFromSockaddr(sa), nil
}

// PeerAddress returns the socket's peer address via getpeername.
func (s Socket) PeerAddress() (InetAddress, error) {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return InetAddress{}, err
	}
	return inetAddressFromSockaddr(sa), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
