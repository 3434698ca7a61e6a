//go:build linux

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/reactor/internal/reactorerr"
)

// epollInitEventSize is the initial capacity of the event array handed to
// epoll_wait; it doubles whenever a call fills it completely.
const epollInitEventSize = 16

// epollPoller is the level-triggered epoll variant of Poller, registering
// raw descriptors directly rather than going through net.Conn.
type epollPoller struct {
	loop    *EventLoop
	epfd    int
	events  []unix.EpollEvent
	fd2chan map[int]*Channel
}

func newEpollPoller(loop *EventLoop) Poller {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		panic(reactorerr.ConfigFailure("epoll", err))
	}
	return &epollPoller{
		loop:    loop,
		epfd:    epfd,
		events:  make([]unix.EpollEvent, epollInitEventSize),
		fd2chan: make(map[int]*Channel),
	}
}

func (p *epollPoller) Poll(timeout time.Duration, active *[]*Channel) (time.Time, error) {
	timeoutMs := int(timeout / time.Millisecond)
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			// A signal interrupted the wait; treat it as an empty poll rather
			// than surfacing it as an error.
			return now, nil
		}
		return now, err
	}
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.fd2chan[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(epollToMask(ev.Events))
		*active = append(*active, ch)
	}
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now, nil
}

func (p *epollPoller) UpdateChannel(c *Channel) error {
	switch c.Tag() {
	case tagNew, tagDeleted:
		fd := c.Fd()
		if c.Tag() == tagNew {
			p.fd2chan[fd] = c
		}
		ev := unix.EpollEvent{Events: uint32(maskToEpoll(c.Events())), Fd: int32(fd)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return err
		}
		c.SetTag(tagAdded)
	case tagAdded:
		fd := c.Fd()
		if c.IsNoneEvent() {
			if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
				return err
			}
			c.SetTag(tagDeleted)
		} else {
			ev := unix.EpollEvent{Events: uint32(maskToEpoll(c.Events())), Fd: int32(fd)}
			if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("reactor: unknown channel tag %d", c.Tag())
	}
	return nil
}

func (p *epollPoller) RemoveChannel(c *Channel) error {
	if !c.IsNoneEvent() {
		panic(reactorerr.ProgrammingViolation("reactor: RemoveChannel called with non-empty interest mask"))
	}
	fd := c.Fd()
	delete(p.fd2chan, fd)
	if c.Tag() == tagAdded {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return err
		}
	}
	c.SetTag(tagNew)
	return nil
}

func (p *epollPoller) HasChannel(c *Channel) bool {
	_, ok := p.fd2chan[c.Fd()]
	return ok
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func maskToEpoll(m eventMask) uint32 {
	var e uint32
	if m&eventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if m&eventUrgent != 0 {
		e |= unix.EPOLLPRI
	}
	if m&eventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToMask(e uint32) eventMask {
	var m eventMask
	if e&unix.EPOLLIN != 0 {
		m |= eventReadable
	}
	if e&unix.EPOLLPRI != 0 {
		m |= eventUrgent
	}
	if e&unix.EPOLLOUT != 0 {
		m |= eventWritable
	}
	if e&unix.EPOLLRDHUP != 0 {
		m |= eventPeerHup
	}
	if e&unix.EPOLLERR != 0 {
		m |= eventError
	}
	if e&unix.EPOLLHUP != 0 {
		m |= eventHup
	}
	return m
}
