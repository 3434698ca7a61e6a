//go:build linux

package reactor

import (
	"strconv"
	"sync"
)

// TcpClient manages at most one active TcpConnection at a time, established
// through a Connector. Unlike TcpServer it always runs
// its connection on the loop it was constructed with; there is no thread
// pool.
type TcpClient struct {
	loop      *EventLoop
	name      string
	connector *Connector

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback

	mu      sync.Mutex
	conn    *TcpConnection
	retry   bool
	connect bool

	nextConnID int
}

// NewTcpClient constructs a client targeting serverAddr on loop.
func NewTcpClient(loop *EventLoop, name string, serverAddr InetAddress) *TcpClient {
	c := &TcpClient{
		loop:            loop,
		name:            name,
		connector:       NewConnector(loop, serverAddr),
		messageCallback: defaultMessageCallback,
		connect:         true,
	}
	c.connector.SetNewConnectedCallback(c.newConnection)
	return c
}

// SetConnectionCallback installs the connection-up/down callback.
func (c *TcpClient) SetConnectionCallback(cb ConnectionCallback) { c.connectionCallback = cb }

// SetMessageCallback installs the message callback.
func (c *TcpClient) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }

// SetWriteCompleteCallback installs the write-complete callback.
func (c *TcpClient) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	c.writeCompleteCallback = cb
}

// EnableRetry turns on reconnect-on-close: when the current connection
// closes, the client automatically starts a new Connector attempt. Opt-in
// since many callers want a one-shot connection instead.
func (c *TcpClient) EnableRetry() { c.retry = true }

// Connect starts the underlying Connector.
func (c *TcpClient) Connect() {
	c.connect = true
	c.connector.Start()
}

func (c *TcpClient) newConnection(connfd int) {
	c.loop.assertInLoopThread()

	sock := NewSocket(connfd)
	localAddr, errL := sock.LocalAddress()
	peerAddr, errP := sock.PeerAddress()
	if errL != nil || errP != nil {
		_ = sock.Close()
		return
	}

	c.nextConnID++
	connName := fmtClientConnName(c.name, c.nextConnID)

	conn := NewTcpConnection(c.loop, connName, connfd, localAddr, peerAddr)
	conn.SetConnectionCallback(c.connectionCallback)
	conn.SetMessageCallback(c.messageCallback)
	conn.SetWriteCompleteCallback(c.writeCompleteCallback)
	conn.SetCloseCallback(c.removeConnection)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.connectEstablished()
}

func (c *TcpClient) removeConnection(conn *TcpConnection) {
	c.loop.assertInLoopThread()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	c.loop.QueueInLoop(conn.connectDestroyed)

	if c.retry && c.connect {
		c.connector.Restart()
	}
}

// Connection returns the current connection, or nil if not connected.
func (c *TcpClient) Connection() *TcpConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Disconnect half-closes the write side of the current connection, if any,
// without preventing future reconnects.
func (c *TcpClient) Disconnect() {
	if conn := c.Connection(); conn != nil {
		conn.Shutdown()
	}
}

// Stop cancels an in-flight connect attempt by halting the Connector and
// disabling retry. It does not touch an already-established connection.
func (c *TcpClient) Stop() {
	c.connect = false
	c.retry = false
	c.connector.Stop()
}

func fmtClientConnName(name string, id int) string {
	return name + "#" + strconv.Itoa(id)
}
