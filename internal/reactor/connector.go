//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type connectorState int32

const (
	connectorDisconnected connectorState = iota
	connectorConnecting
	connectorConnected
)

const (
	connectorInitialRetryDelay = 500 * time.Millisecond
	connectorMaxRetryDelay     = 30 * time.Second
)

// NewConnectedCallback fires once a connect attempt succeeds, handing over
// the raw, now-established descriptor.
type NewConnectedCallback func(connfd int)

// Connector drives a single outbound connection attempt to completion,
// retrying on transient failure with exponential backoff. TcpClient owns exactly one Connector at a time.
type Connector struct {
	loop       *EventLoop
	serverAddr InetAddress

	state   connectorState
	channel *Channel

	connect    bool // whether retries/attempts should continue
	retryDelay time.Duration

	newConnectedCallback NewConnectedCallback
}

// NewConnector constructs a connector targeting serverAddr. Start must be
// called to begin connecting.
func NewConnector(loop *EventLoop, serverAddr InetAddress) *Connector {
	return &Connector{
		loop:       loop,
		serverAddr: serverAddr,
		state:      connectorDisconnected,
		retryDelay: connectorInitialRetryDelay,
	}
}

// SetNewConnectedCallback installs the success callback.
func (c *Connector) SetNewConnectedCallback(cb NewConnectedCallback) {
	c.newConnectedCallback = cb
}

// Start begins connecting, thread-safe.
func (c *Connector) Start() {
	c.connect = true
	c.loop.RunInLoop(c.startInLoop)
}

func (c *Connector) startInLoop() {
	c.loop.assertInLoopThread()
	if !c.connect {
		return
	}
	c.connect0()
}

func (c *Connector) connect0() {
	fd, err := createNonblockingSocket(c.serverAddr.family())
	if err != nil {
		c.loop.logger.Errorf("Connector: socket() failed: %v", err)
		return
	}
	socket := NewSocket(fd)
	err = socket.Connect(c.serverAddr)

	switch {
	case err == nil, err == unix.EINPROGRESS, err == unix.EINTR, err == unix.EISCONN:
		c.connecting(fd)
	case err == unix.EAGAIN, err == unix.EADDRINUSE, err == unix.EADDRNOTAVAIL,
		err == unix.ECONNREFUSED, err == unix.ENETUNREACH:
		_ = socket.Close()
		c.retry()
	case err == unix.EACCES, err == unix.EPERM, err == unix.EAFNOSUPPORT,
		err == unix.EALREADY, err == unix.EBADF, err == unix.EFAULT, err == unix.ENOTSOCK:
		c.loop.logger.Errorf("Connector: connect() abandoned, unrecoverable error: %v", err)
		_ = socket.Close()
	default:
		c.loop.logger.Errorf("Connector: connect() unexpected error: %v", err)
		_ = socket.Close()
	}
}

func (c *Connector) connecting(fd int) {
	c.state = connectorConnecting
	c.channel = NewChannel(c.loop, fd)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetErrorCallback(c.handleError)
	c.channel.EnableWriting()
}

// handleWrite is entered once the connecting socket becomes writable, which
// on Linux signals that connect() has completed one way or another.
// SO_ERROR distinguishes success from failure, and the self-connect check
// catches the well-known Linux ephemeral-port/listen pathology where a
// socket connects to itself.
func (c *Connector) handleWrite() {
	c.loop.assertInLoopThread()
	if c.state != connectorConnecting {
		return
	}

	fd := c.channel.Fd()
	c.removeAndResetChannel()

	socket := NewSocket(fd)
	if err := socket.SoError(); err != nil {
		c.loop.logger.Errorf("Connector: SO_ERROR after connect: %v", err)
		_ = socket.Close()
		c.retry()
		return
	}

	localAddr, err := socket.LocalAddress()
	if err != nil {
		_ = socket.Close()
		c.retry()
		return
	}
	if localAddr.Equal(c.serverAddr) {
		c.loop.logger.Errorf("Connector: self-connect detected, retrying")
		_ = socket.Close()
		c.retry()
		return
	}

	c.state = connectorConnected
	if c.newConnectedCallback != nil {
		c.newConnectedCallback(fd)
	}
}

func (c *Connector) handleError() {
	c.loop.assertInLoopThread()
	if c.state != connectorConnecting {
		return
	}
	fd := c.channel.Fd()
	c.removeAndResetChannel()
	socket := NewSocket(fd)
	err := socket.SoError()
	c.loop.logger.Errorf("Connector: handleError, SO_ERROR=%v", err)
	_ = socket.Close()
	c.retry()
}

func (c *Connector) removeAndResetChannel() {
	c.channel.DisableAll()
	c.channel.Remove()
	c.channel = nil
}

// retry schedules another attempt after the current back-off delay, then
// doubles the delay up to connectorMaxRetryDelay.
func (c *Connector) retry() {
	c.state = connectorDisconnected
	if !c.connect {
		return
	}
	delay := c.retryDelay
	c.loop.logger.Infof("Connector: retrying in %v", delay)
	c.loop.RunAfter(delay, func() {
		if c.connect {
			c.connect0()
		}
	})
	c.retryDelay *= 2
	if c.retryDelay > connectorMaxRetryDelay {
		c.retryDelay = connectorMaxRetryDelay
	}
}

// Stop halts retries and abandons an in-flight attempt: if the connector is
// still connecting, its channel is detached on the loop and no
// new-connection callback fires for that attempt.
func (c *Connector) Stop() {
	c.connect = false
	c.loop.QueueInLoop(func() {
		if c.state == connectorConnecting {
			c.state = connectorDisconnected
			if c.channel != nil {
				c.removeAndResetChannel()
			}
		}
	})
}

// Restart resets back-off and begins connecting again.
func (c *Connector) Restart() {
	c.loop.assertInLoopThread()
	c.state = connectorDisconnected
	c.retryDelay = connectorInitialRetryDelay
	c.connect = true
	c.startInLoop()
}
