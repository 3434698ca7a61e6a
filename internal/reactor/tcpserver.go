//go:build linux

package reactor

import (
	"fmt"
	"sync"
)

// TcpServer accepts inbound connections on one address and distributes them
// across an EventLoopThreadPool. One TcpServer owns
// exactly one Acceptor, which always runs on the server's base loop.
type TcpServer struct {
	baseLoop *EventLoop
	name     string
	acceptor *Acceptor
	pool     *EventLoopThreadPool

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback

	mu          sync.Mutex
	connections map[string]*TcpConnection
	nextConnID  int

	started bool
}

// NewTcpServer constructs a server bound to listenAddr on baseLoop.
// reusePort enables SO_REUSEPORT on the listening socket.
func NewTcpServer(baseLoop *EventLoop, name string, listenAddr InetAddress, reusePort bool) *TcpServer {
	s := &TcpServer{
		baseLoop:        baseLoop,
		name:            name,
		acceptor:        NewAcceptor(baseLoop, listenAddr, reusePort),
		pool:            NewEventLoopThreadPool(baseLoop, name),
		connections:     make(map[string]*TcpConnection),
		messageCallback: defaultMessageCallback,
	}
	s.acceptor.SetNewConnectionCallback(s.newConnection)
	return s
}

// SetThreadNum sets the worker-loop count; must be called before Start.
func (s *TcpServer) SetThreadNum(n int) { s.pool.SetThreadNum(n) }

// SetThreadInitCallback installs a callback run on each worker loop before
// it begins cycling.
func (s *TcpServer) SetThreadInitCallback(cb ThreadInitCallback) {
	s.pool.SetThreadInitCallback(cb)
}

// SetConnectionCallback installs the connection-up/down callback, applied
// to every connection this server accepts.
func (s *TcpServer) SetConnectionCallback(cb ConnectionCallback) { s.connectionCallback = cb }

// SetMessageCallback installs the message callback, applied to every
// connection this server accepts.
func (s *TcpServer) SetMessageCallback(cb MessageCallback) { s.messageCallback = cb }

// SetWriteCompleteCallback installs the write-complete callback, applied to
// every connection this server accepts.
func (s *TcpServer) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	s.writeCompleteCallback = cb
}

// Start launches the worker pool and begins listening. Idempotent: calling
// Start a second time is a no-op. Both steps run on the base loop; when
// called from another goroutine, Start waits for the running base loop to
// finish them.
func (s *TcpServer) Start() error {
	if s.started {
		return nil
	}
	s.started = true

	errc := make(chan error, 1)
	s.baseLoop.RunInLoop(func() {
		if err := s.pool.Start(); err != nil {
			errc <- fmt.Errorf("reactor: TcpServer %s failed to start worker pool: %w", s.name, err)
			return
		}
		errc <- s.acceptor.Listen()
	})
	return <-errc
}

// newConnection is the Acceptor's callback, always invoked on the base
// loop. It assigns the connection a name, picks its worker loop, and moves
// construction onto that loop.
func (s *TcpServer) newConnection(connfd int, peerAddr InetAddress) {
	s.baseLoop.assertInLoopThread()

	ioLoop := s.pool.GetNextLoop()
	connName := fmt.Sprintf("%s-%s#%d", s.name, peerAddr.String(), s.nextConnID)
	s.nextConnID++

	sock := NewSocket(connfd)
	localAddr, err := sock.LocalAddress()
	if err != nil {
		s.baseLoop.logger.Errorf("TcpServer %s: getsockname failed: %v", s.name, err)
		_ = sock.Close()
		return
	}

	ioLoop.RunInLoop(func() {
		conn := NewTcpConnection(ioLoop, connName, connfd, localAddr, peerAddr)
		conn.SetConnectionCallback(s.connectionCallback)
		conn.SetMessageCallback(s.messageCallback)
		conn.SetWriteCompleteCallback(s.writeCompleteCallback)
		conn.SetCloseCallback(s.removeConnection)

		s.mu.Lock()
		s.connections[connName] = conn
		s.mu.Unlock()

		conn.connectEstablished()
	})
}

// removeConnection is a TcpConnection's close callback. Removal from the
// map happens on the base loop, then teardown is finished on the
// connection's own loop.
func (s *TcpServer) removeConnection(conn *TcpConnection) {
	s.baseLoop.RunInLoop(func() {
		s.mu.Lock()
		delete(s.connections, conn.Name())
		s.mu.Unlock()

		conn.Loop().QueueInLoop(conn.connectDestroyed)
	})
}

// Stop force-closes every live connection and stops accepting new ones.
// Existing connections are closed from their own loops.
func (s *TcpServer) Stop() {
	s.baseLoop.RunInLoop(func() {
		_ = s.acceptor.Close()
	})

	s.mu.Lock()
	conns := make([]*TcpConnection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.ForceClose()
	}
}

// ConnectionCount returns the number of currently tracked connections.
func (s *TcpServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// ForEachConnection calls fn once for every connection tracked at the time
// of the call, each invocation happening on that connection's own loop.
// Safe to call from any goroutine. For a connection on the caller's own
// loop fn runs before ForEachConnection returns; for the others it is
// queued and runs asynchronously.
func (s *TcpServer) ForEachConnection(fn func(*TcpConnection)) {
	s.mu.Lock()
	conns := make([]*TcpConnection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Loop().RunInLoop(func() { fn(c) })
	}
}
