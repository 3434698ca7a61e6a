//go:build linux

package reactor

import "sync"

// ThreadInitCallback runs on a worker's own goroutine before its loop
// begins its cycle.
type ThreadInitCallback func(loop *EventLoop)

// EventLoopThread owns one EventLoop running on a dedicated goroutine. The
// goroutine publishes its loop pointer back to the caller exactly once via a
// closed channel, so StartLoop never returns before the loop is ready to
// accept registrations.
type EventLoopThread struct {
	loop     *EventLoop
	ready    chan struct{}
	once     sync.Once
	initFunc ThreadInitCallback
}

// NewEventLoopThread constructs a thread wrapper; the goroutine is not
// started until StartLoop is called.
func NewEventLoopThread(initFunc ThreadInitCallback) *EventLoopThread {
	return &EventLoopThread{
		ready:    make(chan struct{}),
		initFunc: initFunc,
	}
}

// StartLoop launches the worker goroutine and blocks until it has
// constructed its EventLoop and is about to enter its cycle, returning the
// loop pointer for the pool to hand out.
func (t *EventLoopThread) StartLoop() *EventLoop {
	go t.run()
	<-t.ready
	return t.loop
}

func (t *EventLoopThread) run() {
	loop := NewEventLoop()
	if t.initFunc != nil {
		t.initFunc(loop)
	}
	t.loop = loop
	close(t.ready)
	loop.Loop()
}

// Loop returns the worker's loop, or nil if StartLoop has not completed.
func (t *EventLoopThread) Loop() *EventLoop { return t.loop }
