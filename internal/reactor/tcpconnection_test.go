//go:build linux

package reactor

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func newConnectedPairForTest(t *testing.T) (ours, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("Socketpair() error = %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestTcpConnectionConnectEstablishedFiresCallback(t *testing.T) {
	loop := startTestLoop(t)
	ours, _ := newConnectedPairForTest(t)
	local := NewInetAddress(net.IPv4(127, 0, 0, 1), 1)
	remote := NewInetAddress(net.IPv4(127, 0, 0, 1), 2)

	up := make(chan struct{}, 1)
	done := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(done)
		conn := NewTcpConnection(loop, "test-conn", ours, local, remote)
		conn.SetConnectionCallback(func(c *TcpConnection) {
			if c.Connected() {
				up <- struct{}{}
			}
		})
		conn.connectEstablished()
		if !conn.Connected() {
			t.Error("Connected() = false right after connectEstablished")
		}
	})
	<-done

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("connection callback never fired Connected=true")
	}
}

func TestTcpConnectionHandleReadDeliversMessage(t *testing.T) {
	loop := startTestLoop(t)
	ours, peer := newConnectedPairForTest(t)
	local := NewInetAddress(net.IPv4(127, 0, 0, 1), 1)
	remote := NewInetAddress(net.IPv4(127, 0, 0, 1), 2)

	received := make(chan string, 1)
	loop.RunInLoop(func() {
		conn := NewTcpConnection(loop, "test-conn", ours, local, remote)
		conn.SetMessageCallback(func(c *TcpConnection, buf *Buffer, ts time.Time) {
			received <- buf.RetrieveAllAsString()
		})
		conn.connectEstablished()
	})

	if _, err := unix.Write(peer, []byte("hello there")); err != nil {
		t.Fatalf("unix.Write() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "hello there" {
			t.Fatalf("received %q, want %q", got, "hello there")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message callback never fired")
	}
}

func TestTcpConnectionSendWritesToPeer(t *testing.T) {
	loop := startTestLoop(t)
	ours, peer := newConnectedPairForTest(t)
	local := NewInetAddress(net.IPv4(127, 0, 0, 1), 1)
	remote := NewInetAddress(net.IPv4(127, 0, 0, 1), 2)

	var conn *TcpConnection
	setup := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(setup)
		conn = NewTcpConnection(loop, "test-conn", ours, local, remote)
		conn.connectEstablished()
	})
	<-setup

	conn.Send([]byte("payload"))

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = unix.Read(peer, buf)
		if n > 0 || (err != nil && err != unix.EAGAIN) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil && n == 0 {
		t.Fatalf("unix.Read() error = %v", err)
	}
	if got := string(buf[:n]); got != "payload" {
		t.Fatalf("peer received %q, want %q", got, "payload")
	}
}

func TestTcpConnectionForceCloseTearsDown(t *testing.T) {
	loop := startTestLoop(t)
	ours, peer := newConnectedPairForTest(t)
	local := NewInetAddress(net.IPv4(127, 0, 0, 1), 1)
	remote := NewInetAddress(net.IPv4(127, 0, 0, 1), 2)

	closed := make(chan struct{}, 1)
	var conn *TcpConnection
	setup := make(chan struct{})
	loop.RunInLoop(func() {
		defer close(setup)
		conn = NewTcpConnection(loop, "test-conn", ours, local, remote)
		conn.SetCloseCallback(func(c *TcpConnection) {
			// Finish teardown the way TcpServer/TcpClient do.
			c.Loop().QueueInLoop(c.connectDestroyed)
			closed <- struct{}{}
		})
		conn.connectEstablished()
	})
	<-setup

	conn.ForceClose()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close callback never fired after ForceClose")
	}

	buf := make([]byte, 1)
	deadline := time.Now().Add(2 * time.Second)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = unix.Read(peer, buf)
		if err != unix.EAGAIN {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n != 0 {
		t.Fatalf("expected EOF on the peer after ForceClose, read %d bytes (err=%v)", n, err)
	}
}
