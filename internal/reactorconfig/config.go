// Package reactorconfig loads the ambient tunables for the demo binaries
// under cmd/ from a small key/value file, and optionally keeps them fresh
// with a filesystem watch. The worker-loop count it loads is only read at
// startup (a reload never changes it), and it has no poller-choice setting.
package reactorconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds the tunables a demo server or client may want to change
// without a restart: display name, listen address, and the handful of
// per-connection knobs that don't affect how the reactor is wired together.
type Config struct {
	ServerName            string
	ListenAddr            string
	WorkerLoops           int
	HighWaterMark         int
	IdleConnectionTimeout time.Duration
	KeepAliveInterval     time.Duration
}

// Default returns the tunables a demo uses when no file is present.
func Default() Config {
	return Config{
		ServerName:            "reactor-demo",
		ListenAddr:            "0.0.0.0:9981",
		WorkerLoops:           0,
		HighWaterMark:         64 * 1024 * 1024,
		IdleConnectionTimeout: 60 * time.Second,
		KeepAliveInterval:     30 * time.Second,
	}
}

// Load reads a TOML-ish key/value file, one "key = value" pair per line,
// '#' starting a comment. Unrecognized keys are ignored so a config shared
// between the echo server and client demo doesn't have to be pruned per
// binary. Fields absent from the file keep their Default() value.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("reactorconfig: open %s: %w", path, err)
	}
	defer f.Close()

	if err := applyLines(&cfg, f); err != nil {
		return Config{}, fmt.Errorf("reactorconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyLines(cfg *Config, f *os.File) error {
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return fmt.Errorf("line %d: expected \"key = value\", got %q", line, text)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if err := setField(cfg, key, value); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func setField(cfg *Config, key, value string) error {
	switch key {
	case "server_name":
		cfg.ServerName = value
	case "listen_addr":
		cfg.ListenAddr = value
	case "worker_loops":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("worker_loops: %w", err)
		}
		cfg.WorkerLoops = n
	case "high_water_mark_bytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("high_water_mark_bytes: %w", err)
		}
		cfg.HighWaterMark = n
	case "idle_connection_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("idle_connection_timeout: %w", err)
		}
		cfg.IdleConnectionTimeout = d
	case "keepalive_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("keepalive_interval: %w", err)
		}
		cfg.KeepAliveInterval = d
	}
	return nil
}

// ambientFields copies the tunables a hot-reload is allowed to touch.
// WorkerLoops deliberately stays out: the pool a TcpServer was built with
// cannot be resized after Start, so reloading it would either be a silent
// no-op or a lie about what changed.
func ambientFields(dst *Config, src Config) {
	dst.ServerName = src.ServerName
	dst.ListenAddr = src.ListenAddr
	dst.HighWaterMark = src.HighWaterMark
	dst.IdleConnectionTimeout = src.IdleConnectionTimeout
	dst.KeepAliveInterval = src.KeepAliveInterval
}

// Watcher keeps a Config fresh from its backing file using fsnotify,
// publishing each successfully parsed reload through OnChange.
type Watcher struct {
	path    string
	fw      *fsnotify.Watcher
	onError func(error)

	mu  sync.RWMutex
	cur Config

	done chan struct{}
}

// NewWatcher performs an initial Load and starts watching path for writes.
// onChange, if non-nil, is invoked with the refreshed Config after every
// successful reload; it must not block. onError, if non-nil, receives
// parse or watch errors — a bad edit keeps the last-good Config live
// rather than tearing down the watch.
func NewWatcher(path string, onChange func(Config), onError func(error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reactorconfig: new fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("reactorconfig: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		fw:      fw,
		onError: onError,
		cur:     cfg,
		done:    make(chan struct{}),
	}
	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func(Config)) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.mu.Lock()
			ambientFields(&w.cur, reloaded)
			next := w.cur
			w.mu.Unlock()
			if onChange != nil {
				onChange(next)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
