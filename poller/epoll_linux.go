//go:build linux

package poller

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/httpengine/errors"
)

const (
	maxEvents         = 32
	waitTimeoutMillis = 5
)

// epollPoller is the Linux backend, using EPOLLIN|EPOLLET|EPOLLONESHOT so
// each readiness transition is delivered exactly once until explicitly
// rearmed.
type epollPoller struct {
	epollFD int
}

// New builds the platform-appropriate Poller; on Linux this is epoll-backed.
func New() (Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, liberr.ErrPollAdd.Error(err)
	}
	return &epollPoller{epollFD: fd}, nil
}

const interestEvents = unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT

// setHandle and getHandle treat the Fd+Pad pair of an EpollEvent as the
// 8-byte opaque data payload epoll_ctl/epoll_wait round-trip unexamined,
// the same way the original upcall carried a pointer-sized connection
// handle in epoll_event.data.ptr.
func setHandle(ev *unix.EpollEvent, handle int64) {
	*(*int64)(unsafe.Pointer(&ev.Fd)) = handle
}

func getHandle(ev *unix.EpollEvent) int64 {
	return *(*int64)(unsafe.Pointer(&ev.Fd))
}

func (p *epollPoller) ctl(op int, fd int, handle int64, events uint32) error {
	ev := &unix.EpollEvent{Events: events}
	setHandle(ev, handle)
	if err := unix.EpollCtl(p.epollFD, op, fd, ev); err != nil {
		return err
	}
	return nil
}

func (p *epollPoller) Add(handle int64, fd int) error {
	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, handle, uint32(interestEvents)); err != nil {
		return liberr.ErrPollAdd.Error(err)
	}
	return nil
}

func (p *epollPoller) Rearm(handle int64, fd int) error {
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, handle, uint32(interestEvents)); err != nil {
		return liberr.ErrPollRearm.Error(err)
	}
	return nil
}

func (p *epollPoller) Remove(handle int64, fd int) error {
	if err := p.ctl(unix.EPOLL_CTL_DEL, fd, 0, 0); err != nil {
		return liberr.ErrPollRearm.Error(err)
	}
	return nil
}

// TryRemove is a no-op: the kernel drops fd from the interest list on its
// own when the descriptor is closed, and epoll carries no side table that
// could otherwise hand a stale registration to a second waiter.
func (p *epollPoller) TryRemove(handle int64, fd int) {}

func (p *epollPoller) ProcessNextBatch(up Upcall) {
	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(p.epollFD, events[:], waitTimeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return
		}
		time.Sleep(10 * time.Microsecond)
		return
	}
	for i := 0; i < n; i++ {
		if events[i].Events&unix.EPOLLIN == 0 {
			continue
		}
		up(getHandle(&events[i]))
	}
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epollFD)
}
