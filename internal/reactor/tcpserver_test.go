//go:build linux

package reactor

import (
	"net"
	"sync"
	"testing"
	"time"
)

func TestTcpServerEchoesToClient(t *testing.T) {
	serverLoop := startTestLoop(t)
	clientLoop := startTestLoop(t)

	server := NewTcpServer(serverLoop, "echo", NewInetAddress(net.IPv4(127, 0, 0, 1), 0), false)
	server.SetMessageCallback(func(c *TcpConnection, buf *Buffer, ts time.Time) {
		c.Send([]byte(buf.RetrieveAllAsString()))
	})

	var listenAddr InetAddress
	setup := make(chan struct{})
	serverLoop.RunInLoop(func() {
		defer close(setup)
		listenAddr, _ = server.acceptor.socket.LocalAddress()
	})
	<-setup

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(server.Stop)

	client := NewTcpClient(clientLoop, "echo-client", listenAddr)
	received := make(chan string, 1)
	client.SetMessageCallback(func(c *TcpConnection, buf *Buffer, ts time.Time) {
		received <- buf.RetrieveAllAsString()
	})
	up := make(chan *TcpConnection, 1)
	client.SetConnectionCallback(func(c *TcpConnection) {
		if c.Connected() {
			up <- c
		}
	})
	client.Connect()
	t.Cleanup(client.Stop)

	var conn *TcpConnection
	select {
	case conn = <-up:
	case <-time.After(3 * time.Second):
		t.Fatal("client never connected")
	}

	conn.Send([]byte("ping"))

	select {
	case got := <-received:
		if got != "ping" {
			t.Fatalf("echoed message = %q, want %q", got, "ping")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("echo never arrived back at the client")
	}

	deadline := time.Now().Add(2 * time.Second)
	for server.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if server.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", server.ConnectionCount())
	}
}

func TestTcpServerForEachConnectionVisitsAllConnections(t *testing.T) {
	serverLoop := startTestLoop(t)
	clientLoop := startTestLoop(t)

	server := NewTcpServer(serverLoop, "foreach", NewInetAddress(net.IPv4(127, 0, 0, 1), 0), false)
	up := make(chan struct{}, 2)
	server.SetConnectionCallback(func(c *TcpConnection) {
		if c.Connected() {
			up <- struct{}{}
		}
	})

	var listenAddr InetAddress
	setup := make(chan struct{})
	serverLoop.RunInLoop(func() {
		defer close(setup)
		listenAddr, _ = server.acceptor.socket.LocalAddress()
	})
	<-setup

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(server.Stop)

	client1 := NewTcpClient(clientLoop, "c1", listenAddr)
	client1.Connect()
	t.Cleanup(client1.Stop)
	client2 := NewTcpClient(clientLoop, "c2", listenAddr)
	client2.Connect()
	t.Cleanup(client2.Stop)

	for i := 0; i < 2; i++ {
		select {
		case <-up:
		case <-time.After(3 * time.Second):
			t.Fatal("not all clients connected in time")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for server.ConnectionCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := server.ConnectionCount(); n != 2 {
		t.Fatalf("ConnectionCount() = %d, want 2", n)
	}

	var mu sync.Mutex
	visited := 0
	done := make(chan struct{})
	server.ForEachConnection(func(c *TcpConnection) {
		mu.Lock()
		visited++
		n := visited
		mu.Unlock()
		if n == 2 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForEachConnection did not visit both connections")
	}
}

func TestTcpServerStartIsIdempotent(t *testing.T) {
	serverLoop := startTestLoop(t)
	server := NewTcpServer(serverLoop, "idempotent", NewInetAddress(net.IPv4(127, 0, 0, 1), 0), false)

	if err := server.Start(); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	t.Cleanup(server.Stop)
	if err := server.Start(); err != nil {
		t.Fatalf("second Start() error = %v, want nil (idempotent)", err)
	}
}
