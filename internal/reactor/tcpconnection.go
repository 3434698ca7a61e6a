//go:build linux

package reactor

import (
	"sync/atomic"
	"time"
	"weak"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// connState is the connection lifecycle state. Values increase
// monotonically along Connecting -> Connected -> Disconnecting ->
// Disconnected; once Disconnected, a connection never revives.
type connState int32

const (
	connStateConnecting connState = iota
	connStateConnected
	connStateDisconnecting
	connStateDisconnected
)

// defaultHighWaterMark is 64MiB.
const defaultHighWaterMark = 64 * 1024 * 1024

// TcpConnection is the per-connection state machine and data path. It is
// shared between its owning EventLoop, which schedules its callbacks, and
// user code, which may retain a handle for Send; Go's GC keeps it alive as
// long as either side holds a reference.
type TcpConnection struct {
	loop *EventLoop
	name string

	socket  Socket
	channel *Channel

	localAddr InetAddress
	peerAddr  InetAddress

	state atomic.Int32 // connState; written on the loop thread, except that Shutdown and ForceClose set Disconnecting from the caller; read from any

	inputBuffer  *Buffer
	outputBuffer *Buffer

	highWaterMark int

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	closeCallback         CloseCallback

	context any
}

// NewTcpConnection constructs a connection over an already-accepted or
// already-connected socket. Initial state is Connecting.
func NewTcpConnection(loop *EventLoop, name string, sockfd int, localAddr, peerAddr InetAddress) *TcpConnection {
	conn := &TcpConnection{
		loop:            loop,
		name:            name,
		socket:          NewSocket(sockfd),
		localAddr:       localAddr,
		peerAddr:        peerAddr,
		inputBuffer:     NewBuffer(),
		outputBuffer:    NewBuffer(),
		highWaterMark:   defaultHighWaterMark,
		messageCallback: defaultMessageCallback,
	}
	conn.state.Store(int32(connStateConnecting))
	conn.channel = NewChannel(loop, sockfd)
	conn.channel.SetReadCallback(conn.handleRead)
	conn.channel.SetWriteCallback(conn.handleWrite)
	conn.channel.SetCloseCallback(conn.handleClose)
	conn.channel.SetErrorCallback(conn.handleError)
	_ = conn.socket.SetKeepAlive(true)
	return conn
}

// Name returns the connection's name, assigned by TcpServer as
// "<serverName>-<ip:port>#<counter>".
func (c *TcpConnection) Name() string { return c.name }

// Loop returns the owning EventLoop.
func (c *TcpConnection) Loop() *EventLoop { return c.loop }

// LocalAddress returns the connection's local endpoint.
func (c *TcpConnection) LocalAddress() InetAddress { return c.localAddr }

// PeerAddress returns the connection's peer endpoint.
func (c *TcpConnection) PeerAddress() InetAddress { return c.peerAddr }

// Connected reports whether the connection is in the Connected state. Safe
// from any thread; eventually consistent outside the loop thread.
func (c *TcpConnection) Connected() bool {
	return connState(c.state.Load()) == connStateConnected
}

// Disconnected reports whether the connection has fully torn down.
func (c *TcpConnection) Disconnected() bool {
	return connState(c.state.Load()) == connStateDisconnected
}

// Context returns the opaque per-connection application slot, for callers to
// stash arbitrary per-connection state between callbacks.
func (c *TcpConnection) Context() any { return c.context }

// SetContext sets the opaque per-connection application slot.
func (c *TcpConnection) SetContext(ctx any) { c.context = ctx }

// SetConnectionCallback installs the connection-up/down callback.
func (c *TcpConnection) SetConnectionCallback(cb ConnectionCallback) { c.connectionCallback = cb }

// SetMessageCallback installs the message-received callback.
func (c *TcpConnection) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }

// SetWriteCompleteCallback installs the write-complete callback.
func (c *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	c.writeCompleteCallback = cb
}

// SetHighWaterMarkCallback installs the high-water-mark callback and
// threshold.
func (c *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCallback = cb
	c.highWaterMark = mark
}

// SetCloseCallback installs the close callback used by TcpServer/TcpClient
// to remove the connection from their maps.
func (c *TcpConnection) SetCloseCallback(cb CloseCallback) { c.closeCallback = cb }

// SetTcpNoDelay toggles Nagle's algorithm, opt-in per connection.
func (c *TcpConnection) SetTcpNoDelay(on bool) error { return c.socket.SetTcpNoDelay(on) }

// TCPInfo returns kernel TCP diagnostics for this connection's socket.
func (c *TcpConnection) TCPInfo() (string, error) { return c.socket.TCPInfo() }

// connectEstablished is called once by TcpServer/TcpClient on this
// connection's owning loop right after construction.
func (c *TcpConnection) connectEstablished() {
	c.loop.assertInLoopThread()
	if connState(c.state.Load()) != connStateConnecting {
		panic(reactorerr.ProgrammingViolation("reactor: connectEstablished called outside Connecting state"))
	}
	c.state.Store(int32(connStateConnected))
	c.channel.Tie(c)
	c.channel.EnableReading()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
}

// connectDestroyed is called once by TcpServer/TcpClient when the
// connection is being torn down for good. It removes the channel from the
// loop and then closes the socket.
func (c *TcpConnection) connectDestroyed() {
	c.loop.assertInLoopThread()
	if connState(c.state.Load()) == connStateConnected {
		c.state.Store(int32(connStateDisconnected))
		c.channel.DisableAll()
		if c.connectionCallback != nil {
			c.connectionCallback(c)
		}
	}
	c.channel.Untie()
	c.channel.Remove()
	_ = c.socket.Close()
}

// handleRead performs one readv call per readiness notification, with a
// 65536-byte stack spillover so a burst larger than the buffer's writable
// tail doesn't require a preceding FIONREAD ioctl or a second syscall.
func (c *TcpConnection) handleRead(ts time.Time) {
	c.loop.assertInLoopThread()

	writable := c.inputBuffer.buf[c.inputBuffer.writer:]
	var spill [readFdSpillSize]byte

	n, err := unix.Readv(c.socket.Fd(), [][]byte{writable, spill[:]})
	switch {
	case n > 0:
		if n <= len(writable) {
			c.inputBuffer.writer += n
		} else {
			c.inputBuffer.writer = len(c.inputBuffer.buf)
			overflow := n - len(writable)
			c.inputBuffer.Append(spill[:overflow])
		}
		if c.messageCallback != nil {
			c.messageCallback(c, c.inputBuffer, ts)
		}
	case n == 0:
		c.handleClose()
	default:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		c.loop.logger.Errorf("TcpConnection %s handleRead error: %v", c.name, err)
		c.handleError()
	}
}

// handleWrite is triggered by writable readiness once the output buffer is
// non-empty.
func (c *TcpConnection) handleWrite() {
	c.loop.assertInLoopThread()
	if !c.channel.IsWriting() {
		return
	}

	n, err := unix.Write(c.socket.Fd(), c.outputBuffer.Peek())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		c.loop.logger.Errorf("TcpConnection %s handleWrite error: %v", c.name, err)
		return
	}

	// Advance by n, the bytes actually written, not the full buffer length.
	c.outputBuffer.Retrieve(n)

	if c.outputBuffer.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCallback != nil {
			cb := c.writeCompleteCallback
			c.loop.QueueInLoop(func() { cb(c) })
		}
		if connState(c.state.Load()) == connStateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

// handleClose tears the connection down to Disconnected.
func (c *TcpConnection) handleClose() {
	c.loop.assertInLoopThread()
	st := connState(c.state.Load())
	if st != connStateConnected && st != connStateDisconnecting {
		panic(reactorerr.ProgrammingViolation("reactor: handleClose called outside {Connected, Disconnecting}"))
	}
	c.state.Store(int32(connStateDisconnected))
	c.channel.DisableAll()

	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
	if c.closeCallback != nil {
		c.closeCallback(c)
	}
}

// handleError logs the socket's pending error without tearing the
// connection down itself; a POLLERR notification is almost always followed
// by a close notification on the same or a subsequent readiness cycle,
// which drives the actual teardown through handleClose.
func (c *TcpConnection) handleError() {
	err := c.socket.SoError()
	c.loop.logger.Errorf("TcpConnection %s handleError: SO_ERROR=%v", c.name, err)
}

// Send queues data for transmission.
// Called from the owning loop thread, it may write directly; called from a
// foreign thread, it copies the payload before handing off, severing the
// caller's ownership of the buffer.
func (c *TcpConnection) Send(data []byte) {
	if c.loop.isInLoopThread() {
		c.sendInLoop(data)
		return
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	c.loop.QueueInLoop(func() { c.sendInLoop(owned) })
}

func (c *TcpConnection) sendInLoop(data []byte) {
	c.loop.assertInLoopThread()
	if connState(c.state.Load()) == connStateDisconnected {
		c.loop.logger.Debugf("TcpConnection %s sendInLoop: already disconnected, giving up", c.name)
		return
	}

	var written int
	var writeErr error
	remaining := len(data)

	if !c.channel.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.socket.Fd(), data)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				writeErr = err
			}
			n = 0
		}
		written = n
		remaining = len(data) - n
		if remaining == 0 && writeErr == nil {
			if c.writeCompleteCallback != nil {
				cb := c.writeCompleteCallback
				c.loop.QueueInLoop(func() { cb(c) })
			}
			return
		}
	}

	if writeErr != nil {
		c.loop.logger.Errorf("TcpConnection %s sendInLoop write error: %v", c.name, writeErr)
		return
	}

	oldLen := c.outputBuffer.ReadableBytes()
	if oldLen < c.highWaterMark && oldLen+remaining >= c.highWaterMark && c.highWaterMarkCallback != nil {
		cb := c.highWaterMarkCallback
		queued := oldLen + remaining
		c.loop.QueueInLoop(func() { cb(c, queued) })
	}
	c.outputBuffer.Append(data[written:])
	if !c.channel.IsWriting() {
		c.channel.EnableWriting()
	}
}

// Shutdown half-closes the write side once any buffered output has drained.
// Thread-safe.
func (c *TcpConnection) Shutdown() {
	if connState(c.state.Load()) == connStateConnected {
		c.state.CompareAndSwap(int32(connStateConnected), int32(connStateDisconnecting))
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

func (c *TcpConnection) shutdownInLoop() {
	c.loop.assertInLoopThread()
	if !c.channel.IsWriting() {
		_ = c.socket.ShutdownWrite()
	}
	// Otherwise deferred: handleWrite() calls shutdownInLoop again once the
	// output buffer drains.
}

// ForceClose tears the connection down immediately regardless of buffered
// output.
func (c *TcpConnection) ForceClose() {
	st := connState(c.state.Load())
	if st == connStateConnected || st == connStateDisconnecting {
		c.state.Store(int32(connStateDisconnecting))
		c.loop.QueueInLoop(c.forceCloseInLoop)
	}
}

func (c *TcpConnection) forceCloseInLoop() {
	c.loop.assertInLoopThread()
	st := connState(c.state.Load())
	if st == connStateConnected || st == connStateDisconnecting {
		c.handleClose()
	}
}

// ForceCloseWithDelay schedules a ForceClose after delay via a weak
// reference, so the pending timer does not itself keep the connection
// alive.
func (c *TcpConnection) ForceCloseWithDelay(delay time.Duration) {
	weakSelf := weak.Make(c)
	c.loop.RunAfter(delay, func() {
		if conn := weakSelf.Value(); conn != nil {
			conn.ForceClose()
		}
	})
}
