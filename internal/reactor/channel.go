package reactor

import (
	"time"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// eventMask is a bitset over the readiness kinds a Channel can carry in its
// interest or ready mask.
type eventMask uint32

const eventNone eventMask = 0

const (
	eventReadable eventMask = 1 << iota // POLLIN
	eventUrgent                         // POLLPRI
	eventWritable                       // POLLOUT
	eventPeerHup                        // POLLRDHUP
	eventError                          // POLLERR
	eventHup                            // POLLHUP
	eventInvalid                        // POLLNVAL
)

// pollerTag identifies a channel's registration state in its poller's
// bookkeeping.
type pollerTag int

const (
	tagNew pollerTag = iota
	tagAdded
	tagDeleted
)

// ReadCallback is invoked when a channel's descriptor is readable. ts is the
// poller's return timestamp, not the time of invocation.
type ReadCallback func(ts time.Time)

// Channel binds one file descriptor to one EventLoop: it carries the
// interest mask, the last poller-reported ready mask, and the four
// per-event callbacks.
type Channel struct {
	loop   *EventLoop
	fd     int
	events eventMask // interest mask
	revent eventMask // ready mask, set by the poller
	tag    pollerTag
	index  int // poller-private slot, meaning depends on poller variant

	readCallback  ReadCallback
	writeCallback func()
	closeCallback func()
	errorCallback func()

	// tiedObject, when non-nil, is held for the duration of dispatch so the
	// governing TcpConnection cannot be destroyed mid-callback.
	tiedObject    any
	tied          bool
	eventHandling bool
	addedToLoop   bool
}

// NewChannel constructs a channel bound to loop and fd. The channel starts
// with no interest and tag "new".
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, tag: tagNew, index: -1}
}

// Fd returns the bound descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the current interest mask, used by pollers to populate
// their kernel-facing event structures.
func (c *Channel) Events() eventMask { return c.events }

// SetRevents is called by the poller to record the kernel-reported ready
// mask ahead of dispatch.
func (c *Channel) SetRevents(r eventMask) { c.revent = r }

// Tag returns the poller registration tag.
func (c *Channel) Tag() pollerTag { return c.tag }

// SetTag sets the poller registration tag.
func (c *Channel) SetTag(t pollerTag) { c.tag = t }

// Index returns the poller-private slot.
func (c *Channel) Index() int { return c.index }

// SetIndex sets the poller-private slot.
func (c *Channel) SetIndex(i int) { c.index = i }

// SetReadCallback installs the read callback.
func (c *Channel) SetReadCallback(cb ReadCallback) { c.readCallback = cb }

// SetWriteCallback installs the write callback.
func (c *Channel) SetWriteCallback(cb func()) { c.writeCallback = cb }

// SetCloseCallback installs the close callback.
func (c *Channel) SetCloseCallback(cb func()) { c.closeCallback = cb }

// SetErrorCallback installs the error callback.
func (c *Channel) SetErrorCallback(cb func()) { c.errorCallback = cb }

// Tie ties the channel's lifetime to obj: dispatch will no-op once the tie
// has been released via Untie. The tie is enforced cooperatively: the owning
// TcpConnection calls Untie from its own teardown path before dispatch
// should reach it again, and dispatch checks a tied+released flag rather
// than a promoted weak reference. See DESIGN.md for the rationale.
func (c *Channel) Tie(obj any) {
	c.tiedObject = obj
	c.tied = true
}

// Untie releases the tied reference. Called once the governing connection
// has finished its own teardown and no further dispatch should reach it.
func (c *Channel) Untie() {
	c.tiedObject = nil
}

// EnableReading enables read interest and propagates the change to the
// poller via the owning loop.
func (c *Channel) EnableReading() {
	c.events |= eventReadable
	c.update()
}

// DisableReading disables read interest.
func (c *Channel) DisableReading() {
	c.events &^= eventReadable
	c.update()
}

// EnableWriting enables write interest.
func (c *Channel) EnableWriting() {
	c.events |= eventWritable
	c.update()
}

// DisableWriting disables write interest.
func (c *Channel) DisableWriting() {
	c.events &^= eventWritable
	c.update()
}

// DisableAll clears all interest.
func (c *Channel) DisableAll() {
	c.events = eventNone
	c.update()
}

// IsWriting reports whether write interest is currently enabled.
func (c *Channel) IsWriting() bool { return c.events&eventWritable != 0 }

// IsReading reports whether read interest is currently enabled.
func (c *Channel) IsReading() bool { return c.events&eventReadable != 0 }

// IsNoneEvent reports whether the interest mask is empty.
func (c *Channel) IsNoneEvent() bool { return c.events == eventNone }

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// Remove detaches the channel from its loop's poller. Legal only when the
// interest mask is empty.
func (c *Channel) Remove() {
	if !c.IsNoneEvent() {
		panic(reactorerr.ProgrammingViolation("reactor: Channel.Remove called with non-empty interest mask"))
	}
	c.addedToLoop = false
	c.loop.removeChannel(c)
}

// HandleEvent dispatches the current ready mask into the installed
// callbacks, honoring the tie guard and a fixed precedence within one
// dispatch: close > error > read > write.
func (c *Channel) HandleEvent(ts time.Time) {
	if c.tied {
		c.handleEventGuarded(ts)
		return
	}
	c.handleEventInner(ts)
}

func (c *Channel) handleEventGuarded(ts time.Time) {
	if c.tiedObject == nil {
		return
	}
	c.handleEventInner(ts)
}

func (c *Channel) handleEventInner(ts time.Time) {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	r := c.revent
	if r&eventHup != 0 && r&eventReadable == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if r&eventInvalid != 0 && c.loop != nil {
		// Logged here; invalid fds still fall through to error.
		c.loop.logger.Errorf("Channel fd=%d: invalid descriptor (POLLNVAL)", c.fd)
	}
	if r&(eventError|eventInvalid) != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if r&(eventReadable|eventUrgent|eventPeerHup) != 0 {
		if c.readCallback != nil {
			c.readCallback(ts)
		}
	}
	if r&eventWritable != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
