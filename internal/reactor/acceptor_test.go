//go:build linux

package reactor

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestAcceptorAcceptsIncomingConnection(t *testing.T) {
	loop := startTestLoop(t)

	var acc *Acceptor
	var localAddr InetAddress
	setup := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(setup)
		acc = NewAcceptor(loop, NewInetAddress(net.IPv4(127, 0, 0, 1), 0), false)
		localAddr, _ = acc.socket.LocalAddress()
		if err := acc.Listen(); err != nil {
			t.Errorf("Listen() error = %v", err)
		}
	})
	<-setup
	if !acc.Listening() {
		t.Fatal("Listening() = false after Listen()")
	}

	accepted := make(chan int, 1)
	acc.SetNewConnectionCallback(func(connfd int, peerAddr InetAddress) {
		accepted <- connfd
	})

	conn, err := net.Dial("tcp", localAddr.String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case connfd := <-accepted:
		defer unix.Close(connfd)
		if connfd < 0 {
			t.Fatalf("accepted fd = %d, want a valid descriptor", connfd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Acceptor never fired its new-connection callback")
	}
}

func TestAcceptorClosesConnectionWithNoCallbackInstalled(t *testing.T) {
	loop := startTestLoop(t)

	var acc *Acceptor
	var localAddr InetAddress
	setup := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(setup)
		acc = NewAcceptor(loop, NewInetAddress(net.IPv4(127, 0, 0, 1), 0), false)
		localAddr, _ = acc.socket.LocalAddress()
		if err := acc.Listen(); err != nil {
			t.Errorf("Listen() error = %v", err)
		}
	})
	<-setup

	conn, err := net.Dial("tcp", localAddr.String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the peer to close the connection when no callback is installed")
	}
}
