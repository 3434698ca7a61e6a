//go:build linux

package reactor

import (
	"container/heap"
	"time"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// minTimerAdvance is the minimum time in the future a re-armed timerfd is
// allowed to expire, guaranteeing a timer whose expiration is already at or
// before "now" still fires within one loop iteration.
const minTimerAdvance = 100 * time.Microsecond

// timerHeap is a min-heap ordered by (expiration, sequence); sequence
// breaks ties deterministically instead of relying on pointer identity
// ordering.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].expiration.Equal(h[j].expiration) {
		return h[i].sequence < h[j].sequence
	}
	return h[i].expiration.Before(h[j].expiration)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// TimerQueue orders pending timers by expiration and drives a kernel
// timerfd registered as a Channel. AddTimer may be called from any
// goroutine (it hands the insertion to the loop); everything else must only
// be touched from its EventLoop's thread. TimerQueue itself does not lock.
type TimerQueue struct {
	loop    *EventLoop
	timerfd int
	channel *Channel

	active       timerHeap          // expiration-ordered container
	activeSet    map[*timer]struct{} // address-keyed active set
	callingExpired bool
	cancelingSet map[*timer]struct{} // self-cancel set, valid only while callingExpired
}

// NewTimerQueue constructs a TimerQueue bound to loop, creating the
// underlying timerfd and registering it as a channel.
func NewTimerQueue(loop *EventLoop) *TimerQueue {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		panic(reactorerr.ConfigFailure("timerfd", err))
	}
	tq := &TimerQueue{
		loop:         loop,
		timerfd:      fd,
		activeSet:    make(map[*timer]struct{}),
		cancelingSet: make(map[*timer]struct{}),
	}
	tq.channel = NewChannel(loop, fd)
	tq.channel.SetReadCallback(tq.handleRead)
	tq.channel.EnableReading()
	return tq
}

// AddTimer schedules a new timer and returns its handle. Safe from any
// goroutine: the insertion runs on the loop thread via RunInLoop.
func (q *TimerQueue) AddTimer(when time.Time, interval time.Duration, repeat bool, cb TimerCallback) TimerId {
	t := newTimer(when, interval, repeat, cb)
	q.loop.RunInLoop(func() {
		if q.insert(t) {
			q.resetTimerfd(t.expiration)
		}
	})
	return TimerId{target: t, sequence: t.sequence}
}

// Cancel cancels id under one of three outcomes:
// found in the active set → erase and destroy; currently expiring (i.e.
// called from within that timer's own firing callback) → recorded so the
// expiration-processing loop destroys it instead of re-arming it; otherwise
// a no-op (the handle is stale).
func (q *TimerQueue) Cancel(id TimerId) {
	q.loop.assertInLoopThread()
	if _, ok := q.activeSet[id.target]; ok {
		delete(q.activeSet, id.target)
		q.removeFromHeap(id.target)
		return
	}
	if q.callingExpired {
		q.cancelingSet[id.target] = struct{}{}
	}
	// Otherwise: stale handle, no-op.
}

func (q *TimerQueue) insert(t *timer) (earliestChanged bool) {
	earliestChanged = len(q.active) == 0 || t.expiration.Before(q.active[0].expiration)
	heap.Push(&q.active, t)
	q.activeSet[t] = struct{}{}
	return
}

func (q *TimerQueue) removeFromHeap(t *timer) {
	for i, cand := range q.active {
		if cand == t {
			heap.Remove(&q.active, i)
			return
		}
	}
}

// handleRead is the timerfd's read callback: drains the expiration count,
// snapshots due timers, fires their callbacks in expiration order, then
// re-inserts periodic timers not self-cancelled, and re-arms.
func (q *TimerQueue) handleRead(ts time.Time) {
	q.loop.assertInLoopThread()
	drainTimerfd(q.timerfd)

	expired := q.getExpired(ts)

	q.callingExpired = true
	q.cancelingSet = make(map[*timer]struct{})
	for _, t := range expired {
		t.callback()
	}
	q.callingExpired = false

	for _, t := range expired {
		_, cancelled := q.cancelingSet[t]
		if t.repeat && !cancelled {
			t.restart(ts)
			q.activeSet[t] = struct{}{}
			heap.Push(&q.active, t)
		}
		// else: destroyed (simply not re-inserted; Go's GC reclaims it).
	}

	if len(q.active) > 0 {
		q.resetTimerfd(q.active[0].expiration)
	}
}

// getExpired removes and returns every timer whose expiration is <= now,
// in expiration order.
func (q *TimerQueue) getExpired(now time.Time) []*timer {
	var expired []*timer
	for len(q.active) > 0 && !q.active[0].expiration.After(now) {
		t := heap.Pop(&q.active).(*timer)
		delete(q.activeSet, t)
		expired = append(expired, t)
	}
	return expired
}

func (q *TimerQueue) resetTimerfd(when time.Time) {
	d := time.Until(when)
	if d < minTimerAdvance {
		d = minTimerAdvance
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(q.timerfd, 0, &spec, nil); err != nil {
		panic(reactorerr.ConfigFailure("timerfd_settime", err))
	}
}

func drainTimerfd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

// Close releases the timerfd and detaches its channel.
func (q *TimerQueue) Close() error {
	q.channel.DisableAll()
	q.channel.Remove()
	return unix.Close(q.timerfd)
}
