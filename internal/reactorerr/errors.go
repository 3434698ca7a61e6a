// Package reactorerr provides a standardized, structured error shape for
// the reactor runtime: category, code, message, context, and caller.
package reactorerr

import (
	"fmt"
	"runtime"
)

// Category groups errors by the taxonomy in the reactor's error handling
// design: fatal configuration, recoverable connect, per-call socket errors,
// and programming errors.
type Category string

const (
	// CategoryConfig covers failures to create a readiness, wake-up, or
	// timer descriptor, and address-family mismatches. These are fatal:
	// callers are expected to abort process start.
	CategoryConfig Category = "CONFIG"

	// CategoryConnect covers recoverable connect failures that the
	// Connector retries with back-off.
	CategoryConnect Category = "CONNECT"

	// CategorySocket covers per-call socket errors surfaced to a
	// connection's error callback.
	CategorySocket Category = "SOCKET"

	// CategoryProgramming covers user programming errors: calling a
	// loop-thread-only method from a foreign thread, re-entrant loop
	// execution, double destroy. These panic rather than return.
	CategoryProgramming Category = "PROGRAMMING"
)

// Error is the reactor runtime's standard error type.
type Error struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]any
	Caller   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// New creates a standardized reactor error, capturing the immediate caller.
func New(category Category, code, message string, context map[string]any) *Error {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// ConfigFailure builds a CategoryConfig error for descriptor creation
// failures (epoll/timerfd/eventfd) or address-family mismatches.
func ConfigFailure(what string, cause error) *Error {
	return New(CategoryConfig, "DESCRIPTOR_CREATE_FAILED",
		fmt.Sprintf("failed to create %s: %v", what, cause),
		map[string]any{"what": what, "cause": cause})
}

// SocketFailure builds a CategorySocket error for a per-call socket failure.
func SocketFailure(op string, fd int, cause error) *Error {
	return New(CategorySocket, "SOCKET_CALL_FAILED",
		fmt.Sprintf("socket operation %s failed on fd %d: %v", op, fd, cause),
		map[string]any{"op": op, "fd": fd, "cause": cause})
}

// ConnectFailure builds a CategoryConnect error describing a failed connect
// attempt eligible for back-off retry.
func ConnectFailure(addr string, cause error) *Error {
	return New(CategoryConnect, "CONNECT_FAILED",
		fmt.Sprintf("connect to %s failed: %v", addr, cause),
		map[string]any{"addr": addr, "cause": cause})
}

// ProgrammingViolation builds a CategoryProgramming error. Callers panic
// with the result; it is never returned through a normal error path.
func ProgrammingViolation(what string) *Error {
	return New(CategoryProgramming, "INVARIANT_VIOLATION", what, nil)
}
