package reactor

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's numeric id by parsing the
// "goroutine N [state]:" header Go's runtime prints at the top of a stack
// dump. Go deliberately does not expose this as a supported API, and a
// goroutine has no stable thread-identity primitive otherwise; the reactor
// needs this so EventLoop can assert that thread-confined methods are only
// called from the goroutine that constructed the loop. It runs at loop
// construction and on every isInLoopThread check, which includes each
// assertInLoopThread, RunInLoop, QueueInLoop and TcpConnection.Send call;
// each call captures and parses a small stack trace.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
