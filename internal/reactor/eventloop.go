//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// pollTimeout bounds each poll call so the loop periodically re-checks its
// quitting flag and pending tasks even under total readiness silence.
const pollTimeout = 10 * time.Second

// EventLoop pins itself to the thread that constructed it. All methods other than the explicitly thread-safe set
// (RunInLoop, QueueInLoop, Quit, RunAt/After/Every, Cancel) must only be
// called from that thread; violations panic with a CategoryProgramming
// error.
type EventLoop struct {
	threadID int64 // set at construction, compared via goroutineID

	poller Poller
	timers *TimerQueue
	logger Logger

	activeChannels []*Channel
	currentChannel *Channel

	wakeupFd      int
	wakeupChannel *Channel

	mu            sync.Mutex
	pendingTasks  []func()
	callingPending bool

	quitting      atomic.Bool
	looping       atomic.Bool
	iteration     uint64
}

// NewEventLoop constructs a loop bound to the calling goroutine. Goroutines
// are not OS threads, but the reactor's one-loop-per-thread contract is
// enforced by requiring the constructing goroutine to also be the one that
// calls Loop — see assertInLoopThread.
func NewEventLoop() *EventLoop {
	ignoreSigpipe()

	loop := &EventLoop{
		logger: defaultLogger,
	}
	loop.threadID = goroutineID()
	loop.poller = newPollerForEnv(loop)
	loop.timers = NewTimerQueue(loop)

	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		panic(reactorerr.ConfigFailure("eventfd", err))
	}
	loop.wakeupFd = fd
	loop.wakeupChannel = NewChannel(loop, fd)
	loop.wakeupChannel.SetReadCallback(loop.handleWakeup)
	loop.wakeupChannel.EnableReading()

	return loop
}

// SetLogger installs a Logger; must be called before Loop.
func (l *EventLoop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// assertInLoopThread panics with a CategoryProgramming error when called
// from a goroutine other than the one that constructed the loop.
func (l *EventLoop) assertInLoopThread() {
	if !l.isInLoopThread() {
		panic(reactorerr.ProgrammingViolation(
			"reactor: EventLoop method called from a goroutine other than its owner"))
	}
}

func (l *EventLoop) isInLoopThread() bool {
	return goroutineID() == l.threadID
}

// Loop runs the event loop's cycle. Detects re-entrant calls and panics
// rather than silently corrupting the active-channel slice.
func (l *EventLoop) Loop() {
	l.assertInLoopThread()
	if l.looping.Load() {
		panic(reactorerr.ProgrammingViolation("reactor: EventLoop.Loop called re-entrantly"))
	}
	l.looping.Store(true)
	defer l.looping.Store(false)

	l.logger.Infof("EventLoop %p start looping", l)

	for !l.quitting.Load() {
		l.activeChannels = l.activeChannels[:0]
		ts, err := l.poller.Poll(pollTimeout, &l.activeChannels)
		if err != nil {
			l.logger.Errorf("EventLoop %p poll error: %v", l, err)
			continue
		}
		l.iteration++

		for _, ch := range l.activeChannels {
			l.currentChannel = ch
			ch.HandleEvent(ts)
		}
		l.currentChannel = nil

		l.doPendingTasks()
	}

	l.logger.Infof("EventLoop %p stop looping", l)
}

// Quit stops the loop after the current iteration completes. Thread-safe;
// wakes the loop if called from a foreign goroutine.
func (l *EventLoop) Quit() {
	l.quitting.Store(true)
	if !l.isInLoopThread() {
		l.wakeup()
	}
}

// RunInLoop runs f on the loop thread: synchronously if already there,
// otherwise queued.
func (l *EventLoop) RunInLoop(f func()) {
	if l.isInLoopThread() {
		f()
	} else {
		l.QueueInLoop(f)
	}
}

// QueueInLoop always enqueues f, waking the loop if the caller is foreign or
// the loop is currently draining its pending queue.
func (l *EventLoop) QueueInLoop(f func()) {
	l.mu.Lock()
	l.pendingTasks = append(l.pendingTasks, f)
	callingPending := l.callingPending
	l.mu.Unlock()

	if !l.isInLoopThread() || callingPending {
		l.wakeup()
	}
}

func (l *EventLoop) doPendingTasks() {
	var tasks []func()

	l.mu.Lock()
	tasks, l.pendingTasks = l.pendingTasks, nil
	l.callingPending = true
	l.mu.Unlock()

	for _, f := range tasks {
		f()
	}

	l.mu.Lock()
	l.callingPending = false
	l.mu.Unlock()
}

func (l *EventLoop) wakeup() {
	var one uint64 = 1
	var buf [8]byte
	// little/big endian doesn't matter to the reader, which only counts.
	buf[0] = byte(one)
	_, _ = unix.Write(l.wakeupFd, buf[:])
}

func (l *EventLoop) handleWakeup(ts time.Time) {
	var buf [8]byte
	_, _ = unix.Read(l.wakeupFd, buf[:])
}

// RunAt schedules cb to fire once at when.
func (l *EventLoop) RunAt(when time.Time, cb TimerCallback) TimerId {
	return l.timers.AddTimer(when, 0, false, cb)
}

// RunAfter schedules cb to fire once after delay.
func (l *EventLoop) RunAfter(delay time.Duration, cb TimerCallback) TimerId {
	return l.RunAt(time.Now().Add(delay), cb)
}

// RunEvery schedules cb to fire repeatedly every interval, starting after
// one interval.
func (l *EventLoop) RunEvery(interval time.Duration, cb TimerCallback) TimerId {
	when := time.Now().Add(interval)
	return l.timers.AddTimer(when, interval, true, cb)
}

// Cancel cancels a previously scheduled timer.
func (l *EventLoop) Cancel(id TimerId) {
	l.RunInLoop(func() { l.timers.Cancel(id) })
}

func (l *EventLoop) updateChannel(c *Channel) {
	l.assertInLoopThread()
	if err := l.poller.UpdateChannel(c); err != nil {
		l.logger.Errorf("EventLoop %p UpdateChannel(fd=%d) failed: %v", l, c.Fd(), err)
	}
}

func (l *EventLoop) removeChannel(c *Channel) {
	l.assertInLoopThread()
	if err := l.poller.RemoveChannel(c); err != nil {
		l.logger.Errorf("EventLoop %p RemoveChannel(fd=%d) failed: %v", l, c.Fd(), err)
	}
}

// Close releases the loop's own kernel resources (wake-up eventfd, timer
// queue, poller). Must be called after Loop has returned.
func (l *EventLoop) Close() error {
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	_ = unix.Close(l.wakeupFd)
	_ = l.timers.Close()
	return l.poller.Close()
}

// Iteration returns the number of completed poll cycles, useful for tests
// and diagnostics.
func (l *EventLoop) Iteration() uint64 { return l.iteration }
