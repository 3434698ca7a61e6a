package reactor

import (
	"log"
	"os"
)

// Logger is the injection point for diagnostic output. The asynchronous log
// sink, file-rolling, and timezone-aware formatting are external
// collaborators; the reactor core only needs somewhere to report
// assertions, poller failures, and connection lifecycle events.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// stdLogger adapts the standard library's log.Logger to Logger.
type stdLogger struct {
	debug *log.Logger
	info  *log.Logger
	error *log.Logger
}

// NewStdLogger returns a Logger backed by the standard library, writing all
// levels to stderr with a level tag.
func NewStdLogger() Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &stdLogger{
		debug: log.New(os.Stderr, "DEBUG ", flags),
		info:  log.New(os.Stderr, "INFO  ", flags),
		error: log.New(os.Stderr, "ERROR ", flags),
	}
}

func (l *stdLogger) Debugf(format string, args ...any) { l.debug.Printf(format, args...) }
func (l *stdLogger) Infof(format string, args ...any)  { l.info.Printf(format, args...) }
func (l *stdLogger) Errorf(format string, args ...any) { l.error.Printf(format, args...) }

// nopLogger discards everything; used as the zero-value default so that
// constructing a component without configuring a logger never panics.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

var defaultLogger Logger = nopLogger{}
