package reactor

import (
	"os"
	"strconv"
	"time"
)

// Poller abstracts the readiness mechanism. Both variants
// are called only from the owning EventLoop's thread.
type Poller interface {
	// Poll waits up to timeout for readiness, appending ready channels to
	// active (which the caller has already cleared) and returning the
	// kernel's return timestamp.
	Poll(timeout time.Duration, active *[]*Channel) (time.Time, error)

	// UpdateChannel registers a channel's current interest mask, adding,
	// modifying, or removing its kernel registration as dictated by the
	// channel's tag.
	UpdateChannel(c *Channel) error

	// RemoveChannel deregisters a channel. Requires an empty interest mask.
	RemoveChannel(c *Channel) error

	// HasChannel reports whether the poller currently tracks c.
	HasChannel(c *Channel) bool

	// Close releases the poller's own kernel resources (the epoll fd, or
	// nothing for the poll variant).
	Close() error
}

// pollerBackendEnv is the single environment-variable switch this package
// exposes: a truthy value selects the poll(2) variant, anything else (or
// unset) keeps the default epoll variant.
const pollerBackendEnv = "REACTOR_USE_POLL"

// newPollerForEnv constructs the Poller variant selected by
// REACTOR_USE_POLL.
func newPollerForEnv(loop *EventLoop) Poller {
	if truthy(os.Getenv(pollerBackendEnv)) {
		return newPollPoller(loop)
	}
	return newEpollPoller(loop)
}

func truthy(s string) bool {
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err == nil {
		return b
	}
	// Accept any other non-empty value as truthy.
	return true
}
