//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// NewConnectionCallback fires once per accepted connection, handing the
// caller the raw descriptor and the peer's address before any
// TcpConnection wrapping happens.
type NewConnectionCallback func(connfd int, peerAddr InetAddress)

// Acceptor owns a listening socket and accepts new connections one at a
// time per readiness notification. It always lives on a
// TcpServer's base loop; accepted descriptors are handed off to worker
// loops by the caller.
type Acceptor struct {
	loop      *EventLoop
	socket    Socket
	channel   *Channel
	listening bool

	newConnectionCallback NewConnectionCallback

	// idleFd is a pre-opened, otherwise-unused descriptor kept in reserve so
	// that hitting the process fd limit (EMFILE) on accept doesn't leave the
	// listening socket perpetually readable and starve the loop.
	idleFd int
}

// NewAcceptor creates a listening socket bound to listenAddr. reusePort
// enables SO_REUSEPORT in addition to the always-on SO_REUSEADDR.
func NewAcceptor(loop *EventLoop, listenAddr InetAddress, reusePort bool) *Acceptor {
	fd, err := createNonblockingSocket(listenAddr.family())
	if err != nil {
		panic(reactorerr.SocketFailure("socket", -1, err))
	}
	socket := NewSocket(fd)
	if err := socket.SetReuseAddr(true); err != nil {
		panic(reactorerr.SocketFailure("setsockopt(SO_REUSEADDR)", fd, err))
	}
	if reusePort {
		if err := socket.SetReusePort(true); err != nil {
			panic(reactorerr.SocketFailure("setsockopt(SO_REUSEPORT)", fd, err))
		}
	}
	if err := socket.Bind(listenAddr); err != nil {
		panic(reactorerr.SocketFailure("bind", fd, err))
	}

	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		idleFd = -1
	}

	a := &Acceptor{
		loop:    loop,
		socket:  socket,
		idleFd:  idleFd,
		channel: NewChannel(loop, fd),
	}
	a.channel.SetReadCallback(a.handleRead)
	return a
}

// SetNewConnectionCallback installs the accept callback.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	a.newConnectionCallback = cb
}

// Listening reports whether the socket is accepting connections.
func (a *Acceptor) Listening() bool { return a.listening }

// Listen marks the socket listening and arms read interest.
func (a *Acceptor) Listen() error {
	a.loop.assertInLoopThread()
	a.listening = true
	if err := a.socket.Listen(); err != nil {
		return err
	}
	a.channel.EnableReading()
	return nil
}

// handleRead accepts exactly one pending connection per readiness
// notification.
func (a *Acceptor) handleRead(ts time.Time) {
	a.loop.assertInLoopThread()

	connfd, peerAddr, err := a.socket.Accept()
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EWOULDBLOCK, unix.EINTR:
			return
		case unix.EMFILE, unix.ENFILE:
			a.handleFileDescriptorExhaustion()
			return
		default:
			a.loop.logger.Errorf("Acceptor handleRead error: %v", err)
			return
		}
	}

	if a.newConnectionCallback != nil {
		a.newConnectionCallback(connfd, peerAddr)
	} else {
		_ = unix.Close(connfd)
	}
}

// handleFileDescriptorExhaustion implements the sentinel-fd mitigation: the
// reserved idle descriptor is closed to free one slot, a connection is
// accepted and immediately dropped to drain the pending-connection queue's
// head, then the sentinel is reopened so future accepts still have the
// reserve available.
func (a *Acceptor) handleFileDescriptorExhaustion() {
	if a.idleFd >= 0 {
		_ = unix.Close(a.idleFd)
	}
	connfd, _, err := a.socket.Accept()
	if err == nil {
		_ = unix.Close(connfd)
	}
	a.idleFd, _ = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
}

// Close releases the listening socket and the reserved descriptor.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	if a.idleFd >= 0 {
		_ = unix.Close(a.idleFd)
	}
	return a.socket.Close()
}
