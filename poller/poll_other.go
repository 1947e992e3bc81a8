//go:build !linux

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/httpengine/errors"
)

const (
	errorWaitMicros  = 100
	waitTimeoutMilli = 1
)

// pollPoller is the portable fallback backend for platforms without epoll.
// It keeps its own fd->handle lookup under a mutex and polls every
// registered descriptor on each batch, which is O(n) in the number of
// registered connections rather than epoll's O(ready).
type pollPoller struct {
	mu     sync.Mutex
	lookup map[int]int64
}

// New builds the platform-appropriate Poller; off Linux this is the
// poll-based fallback.
func New() (Poller, error) {
	return &pollPoller{lookup: make(map[int]int64)}, nil
}

func (p *pollPoller) Add(handle int64, fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookup[fd] = handle
	return nil
}

func (p *pollPoller) Rearm(handle int64, fd int) error {
	return p.Add(handle, fd)
}

func (p *pollPoller) Remove(handle int64, fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lookup, fd)
	return nil
}

// TryRemove removes fd only if it is still registered under handle,
// guarding against a connection that was closed and its fd number reused
// and re-registered by a new connection before the stale removal runs.
func (p *pollPoller) TryRemove(handle int64, fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.lookup[fd]; ok && cur == handle {
		delete(p.lookup, fd)
	}
}

func (p *pollPoller) ProcessNextBatch(up Upcall) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.lookup))
	handles := make(map[int]int64, len(p.lookup))
	for fd, handle := range p.lookup {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		handles[fd] = handle
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		time.Sleep(time.Millisecond)
		return
	}

	n, err := unix.Poll(fds, waitTimeoutMilli)
	if err != nil {
		if err == unix.EINTR {
			return
		}
		time.Sleep(errorWaitMicros * time.Microsecond)
		return
	}
	if n == 0 {
		return
	}

	for _, pfd := range fds {
		if pfd.Revents&unix.POLLIN == 0 {
			continue
		}
		fd := int(pfd.Fd)

		p.mu.Lock()
		handle, ok := p.lookup[fd]
		if ok {
			delete(p.lookup, fd)
		}
		p.mu.Unlock()

		if ok {
			up(handle)
		}
	}
}

func (p *pollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lookup) != 0 {
		return liberr.ErrPollRearm.Error(nil)
	}
	return nil
}
