//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the poll(2) variant of Poller, selected when
// REACTOR_USE_POLL is set. Maintains a parallel slice of
// poll descriptors and channels; a channel temporarily suspending all
// interest gets its stored fd negated (-fd-1) so the kernel ignores it
// without a remove/re-add round trip.
type pollPoller struct {
	loop     *EventLoop
	pollfds  []unix.PollFd
	channels []*Channel
}

func newPollPoller(loop *EventLoop) Poller {
	return &pollPoller{loop: loop}
}

func (p *pollPoller) Poll(timeout time.Duration, active *[]*Channel) (time.Time, error) {
	timeoutMs := int(timeout / time.Millisecond)
	n, err := unix.Poll(p.pollfds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, err
	}
	if n <= 0 {
		return now, nil
	}
	for i := range p.pollfds {
		if p.pollfds[i].Revents == 0 {
			continue
		}
		ch := p.channels[i]
		ch.SetRevents(pollToMask(p.pollfds[i].Revents))
		*active = append(*active, ch)
	}
	return now, nil
}

func (p *pollPoller) UpdateChannel(c *Channel) error {
	if c.Index() < 0 {
		// A new channel: append.
		pfd := unix.PollFd{Fd: int32(c.Fd()), Events: int16(maskToPoll(c.Events()))}
		c.SetIndex(len(p.pollfds))
		p.pollfds = append(p.pollfds, pfd)
		p.channels = append(p.channels, c)
		c.SetTag(tagAdded)
		return nil
	}
	// Existing channel: update in place.
	idx := c.Index()
	if c.IsNoneEvent() {
		// Suspend without removing.
		p.pollfds[idx].Fd = int32(-c.Fd() - 1)
	} else {
		p.pollfds[idx].Fd = int32(c.Fd())
		p.pollfds[idx].Events = int16(maskToPoll(c.Events()))
	}
	return nil
}

func (p *pollPoller) RemoveChannel(c *Channel) error {
	idx := c.Index()
	if idx < 0 || idx >= len(p.pollfds) {
		return nil
	}
	last := len(p.pollfds) - 1
	if idx != last {
		p.pollfds[idx] = p.pollfds[last]
		p.channels[idx] = p.channels[last]
		p.channels[idx].SetIndex(idx)
	}
	p.pollfds = p.pollfds[:last]
	p.channels = p.channels[:last]
	c.SetIndex(-1)
	c.SetTag(tagNew)
	return nil
}

func (p *pollPoller) HasChannel(c *Channel) bool {
	idx := c.Index()
	return idx >= 0 && idx < len(p.channels) && p.channels[idx] == c
}

func (p *pollPoller) Close() error { return nil }

func maskToPoll(m eventMask) int16 {
	var e int16
	if m&eventReadable != 0 {
		e |= unix.POLLIN
	}
	if m&eventUrgent != 0 {
		e |= unix.POLLPRI
	}
	if m&eventWritable != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollToMask(e int16) eventMask {
	var m eventMask
	if e&unix.POLLIN != 0 {
		m |= eventReadable
	}
	if e&unix.POLLPRI != 0 {
		m |= eventUrgent
	}
	if e&unix.POLLOUT != 0 {
		m |= eventWritable
	}
	if e&unix.POLLRDHUP != 0 {
		m |= eventPeerHup
	}
	if e&unix.POLLERR != 0 {
		m |= eventError
	}
	if e&unix.POLLHUP != 0 {
		m |= eventHup
	}
	if e&unix.POLLNVAL != 0 {
		m |= eventInvalid
	}
	return m
}
