//go:build linux

package reactor

import (
	"os/signal"
	"sync"
	"syscall"
)

var ignoreSigpipeOnce sync.Once

// ignoreSigpipe installs a process-wide ignore handler for SIGPIPE, so a
// write to a half-closed peer returns EPIPE rather than terminating the
// process. Go's runtime already ignores SIGPIPE on fds it opened
// through net.Conn, but this reactor talks to raw fds via golang.org/x/sys,
// bypassing that machinery, so the ignore must be installed explicitly,
// once per process.
func ignoreSigpipe() {
	ignoreSigpipeOnce.Do(func() {
		signal.Ignore(syscall.SIGPIPE)
	})
}
