// Command reactor-echo-server is a demo TCP echo server built on the
// reactor runtime. It loads its tunables from a config file, hot-reloads
// the ambient ones with a filesystem watch, and logs connection lifecycle
// and high-water-mark backpressure events.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/orizon-lang/reactor/internal/reactor"
	"github.com/orizon-lang/reactor/internal/reactorconfig"
	"github.com/orizon-lang/reactor/internal/reactordemo"
)

const serverVersion = "1.4.0"

// connState tracks per-connection handshake progress and last-activity
// time; stored in TcpConnection's context slot.
type connState struct {
	mu           sync.Mutex
	handshakeOK  bool
	lastActivity time.Time
}

func (s *connState) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *connState) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func main() {
	configPath := flag.String("config", "", "path to a reactorconfig key/value file (optional)")
	listenAddr := flag.String("listen", "", "listen address, overrides the config file")
	workerLoops := flag.Int("workers", -1, "worker loop count, overrides the config file (-1 = use config)")
	reusePort := flag.Bool("reuse-port", false, "enable SO_REUSEPORT on the listening socket")
	minPeerVersion := flag.String("min-peer-version", "1.0.0", "minimum acceptable client hello version")
	flag.Parse()

	cfg := reactorconfig.Default()
	if *configPath != "" {
		loaded, err := reactorconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reactor-echo-server: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *workerLoops >= 0 {
		cfg.WorkerLoops = *workerLoops
	}

	logger := reactor.NewStdLogger()

	addr, err := reactor.ResolveInetAddress(cfg.ListenAddr)
	if err != nil {
		logger.Errorf("resolving %s: %v", cfg.ListenAddr, err)
		os.Exit(1)
	}

	loop := reactor.NewEventLoop()
	loop.SetLogger(logger)

	server := reactor.NewTcpServer(loop, cfg.ServerName, addr, *reusePort)
	server.SetThreadNum(cfg.WorkerLoops)

	server.SetConnectionCallback(func(c *reactor.TcpConnection) {
		if c.Connected() {
			logger.Infof("%s: connection up from %s", c.Name(), c.PeerAddress().String())
			c.SetHighWaterMarkCallback(func(c *reactor.TcpConnection, bytesQueued int) {
				logger.Infof("%s: output buffer over high-water mark (%d bytes queued)", c.Name(), bytesQueued)
			}, cfg.HighWaterMark)
			state := &connState{lastActivity: time.Now()}
			c.SetContext(state)
			c.Send([]byte(reactordemo.HelloLine(serverVersion)))
		} else {
			logger.Infof("%s: connection down", c.Name())
		}
	})
	server.SetMessageCallback(func(c *reactor.TcpConnection, buf *reactor.Buffer, ts time.Time) {
		state, _ := c.Context().(*connState)
		if state == nil {
			state = &connState{lastActivity: time.Now()}
			c.SetContext(state)
		}
		state.touch()

		state.mu.Lock()
		done := state.handshakeOK
		state.mu.Unlock()
		if !done {
			eol := buf.FindEOL()
			if eol < 0 {
				return
			}
			line := buf.RetrieveAsString(eol + 1)
			line = line[:len(line)-1]

			peerVersion, err := reactordemo.ParseHello(line)
			if err != nil {
				logger.Errorf("%s: bad hello %q: %v", c.Name(), line, err)
				c.ForceClose()
				return
			}
			ok, err := reactordemo.Satisfies(peerVersion, *minPeerVersion)
			if err != nil || !ok {
				logger.Errorf("%s: client version %s does not satisfy >= %s, disconnecting",
					c.Name(), peerVersion, *minPeerVersion)
				c.ForceClose()
				return
			}
			state.mu.Lock()
			state.handshakeOK = true
			state.mu.Unlock()
			logger.Infof("%s: handshake complete, client version %s", c.Name(), peerVersion)
			return
		}

		c.Send([]byte(buf.RetrieveAllAsString()))
	})

	loop.RunEvery(cfg.IdleConnectionTimeout/2, func() {
		server.ForEachConnection(func(c *reactor.TcpConnection) {
			state, _ := c.Context().(*connState)
			if state == nil {
				return
			}
			if state.idleSince() > cfg.IdleConnectionTimeout {
				logger.Infof("%s: idle for over %s, closing", c.Name(), cfg.IdleConnectionTimeout)
				c.ForceClose()
			}
		})
	})

	if *configPath != "" {
		watcher, err := reactorconfig.NewWatcher(*configPath, func(next reactorconfig.Config) {
			logger.Infof("config reloaded: high_water_mark=%d idle_timeout=%s keepalive=%s",
				next.HighWaterMark, next.IdleConnectionTimeout, next.KeepAliveInterval)
		}, func(err error) {
			logger.Errorf("config reload failed: %v", err)
		})
		if err != nil {
			logger.Errorf("starting config watcher: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	if err := server.Start(); err != nil {
		logger.Errorf("server start: %v", err)
		os.Exit(1)
	}
	logger.Infof("%s listening on %s with %d worker loop(s)", cfg.ServerName, addr.String(), cfg.WorkerLoops)

	loop.Loop()
}
