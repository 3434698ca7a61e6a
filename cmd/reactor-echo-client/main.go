// Command reactor-echo-client is a demo TCP echo client built on the
// reactor runtime. It reconnects on close and, before treating the
// connection as open for business, exchanges a version hello with the
// server and disconnects if the peer doesn't meet --min-peer-version.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/orizon-lang/reactor/internal/reactor"
	"github.com/orizon-lang/reactor/internal/reactordemo"
)

const clientVersion = "1.4.0"

func main() {
	serverAddr := flag.String("addr", "127.0.0.1:9981", "server address to connect to")
	minPeerVersion := flag.String("min-peer-version", "1.0.0", "minimum acceptable server hello version")
	retry := flag.Bool("retry", true, "reconnect automatically when the connection drops")
	flag.Parse()

	logger := reactor.NewStdLogger()

	addr, err := reactor.ResolveInetAddress(*serverAddr)
	if err != nil {
		logger.Errorf("resolving %s: %v", *serverAddr, err)
		os.Exit(1)
	}

	loop := reactor.NewEventLoop()
	loop.SetLogger(logger)

	client := reactor.NewTcpClient(loop, "reactor-echo-client", addr)
	if *retry {
		client.EnableRetry()
	}

	type handshakeState struct {
		done bool
	}

	client.SetConnectionCallback(func(c *reactor.TcpConnection) {
		if c.Connected() {
			logger.Infof("connected to %s", c.PeerAddress().String())
			c.SetContext(&handshakeState{})
			c.Send([]byte(reactordemo.HelloLine(clientVersion)))
		} else {
			logger.Infof("disconnected from %s", c.PeerAddress().String())
		}
	})

	client.SetMessageCallback(func(c *reactor.TcpConnection, buf *reactor.Buffer, ts time.Time) {
		state, _ := c.Context().(*handshakeState)
		if state == nil {
			state = &handshakeState{}
			c.SetContext(state)
		}

		for {
			eol := buf.FindEOL()
			if eol < 0 {
				return
			}
			line := buf.RetrieveAsString(eol + 1)
			line = line[:len(line)-1]

			if !state.done {
				peerVersion, err := reactordemo.ParseHello(line)
				if err != nil {
					logger.Errorf("%s: bad hello %q: %v", c.Name(), line, err)
					c.ForceClose()
					return
				}
				ok, err := reactordemo.Satisfies(peerVersion, *minPeerVersion)
				if err != nil {
					logger.Errorf("%s: %v", c.Name(), err)
					c.ForceClose()
					return
				}
				if !ok {
					logger.Errorf("%s: server version %s does not satisfy >= %s, disconnecting",
						c.Name(), peerVersion, *minPeerVersion)
					c.ForceClose()
					return
				}
				state.done = true
				logger.Infof("%s: handshake complete, server version %s", c.Name(), peerVersion)
				continue
			}

			fmt.Println(line)
		}
	})

	client.Connect()
	defer client.Stop()

	go pumpStdin(client)

	loop.Loop()
}

// pumpStdin forwards each line typed on standard input to the active
// connection, queuing the send onto the loop from this goroutine.
func pumpStdin(client *reactor.TcpClient) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		conn := client.Connection()
		if conn == nil || !conn.Connected() {
			continue
		}
		conn.Send([]byte(scanner.Text() + "\n"))
	}
}
