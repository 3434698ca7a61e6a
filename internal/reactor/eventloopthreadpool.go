//go:build linux

package reactor

import (
	"fmt"
	"hash/fnv"

	"golang.org/x/sync/errgroup"
)

// EventLoopThreadPool starts N worker threads, each running its own loop,
// and distributes connections across them round-robin or by hash. When numThreads is zero, GetNextLoop always returns the base
// loop and everything runs on it.
type EventLoopThreadPool struct {
	baseLoop *EventLoop
	name     string
	started  bool
	numLoops int
	initFunc ThreadInitCallback

	threads []*EventLoopThread
	loops   []*EventLoop
	next    int
}

// NewEventLoopThreadPool constructs a pool owned by baseLoop.
func NewEventLoopThreadPool(baseLoop *EventLoop, name string) *EventLoopThreadPool {
	return &EventLoopThreadPool{baseLoop: baseLoop, name: name}
}

// SetThreadNum sets the worker count; must be called before Start.
func (p *EventLoopThreadPool) SetThreadNum(n int) { p.numLoops = n }

// SetThreadInitCallback installs a callback that runs on each worker
// goroutine before its loop begins its cycle.
func (p *EventLoopThreadPool) SetThreadInitCallback(cb ThreadInitCallback) { p.initFunc = cb }

// Start launches the worker threads. Each worker's StartLoop blocks until
// its EventLoop is constructed; Start fans those startups out concurrently
// via an errgroup and waits for all of them, rather than starting workers
// one at a time.
func (p *EventLoopThreadPool) Start() error {
	p.baseLoop.assertInLoopThread()
	if p.started {
		return fmt.Errorf("reactor: EventLoopThreadPool already started")
	}
	p.started = true

	if p.numLoops <= 0 {
		return nil
	}

	p.threads = make([]*EventLoopThread, p.numLoops)
	p.loops = make([]*EventLoop, p.numLoops)

	var g errgroup.Group
	for i := 0; i < p.numLoops; i++ {
		i := i
		p.threads[i] = NewEventLoopThread(p.initFunc)
		g.Go(func() error {
			p.loops[i] = p.threads[i].StartLoop()
			return nil
		})
	}
	return g.Wait()
}

// GetNextLoop selects the next loop round-robin. Returns the base loop if
// the pool has no workers.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	p.baseLoop.assertInLoopThread()
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	loop := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return loop
}

// GetLoopForHash selects a loop by hashing key, giving connections sharing
// a key (e.g. a client identity) affinity to the same worker.
func (p *EventLoopThreadPool) GetLoopForHash(key string) *EventLoop {
	p.baseLoop.assertInLoopThread()
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return p.loops[int(h.Sum32())%len(p.loops)]
}

// AllLoops returns every worker loop, or just the base loop if the pool has
// no workers, e.g. so a caller can fan out quits to every loop.
func (p *EventLoopThreadPool) AllLoops() []*EventLoop {
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}
