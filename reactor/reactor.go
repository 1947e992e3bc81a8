// Package reactor is a multi-threaded, edge-triggered TCP server: an
// acceptor socket and every accepted connection share one poller, with a
// fixed pool of worker goroutines draining its readiness batches. A
// connection's handler is refcounted at no more than two outstanding
// invocations (the serialized packet-upcall path plus, momentarily, the
// close path), and its Finalize call happens exactly once, when that count
// drops to zero.
package reactor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	liberr "github.com/sabouaram/httpengine/errors"
	"github.com/sabouaram/httpengine/logger"
	"github.com/sabouaram/httpengine/poller"
	"github.com/sabouaram/httpengine/sockutil"
)

// ConnectionHandler receives the lifecycle and data callbacks for one
// accepted connection.
type ConnectionHandler interface {
	// SetContext is called once, immediately after acceptance, before any
	// HandleBuffer call, so the handler can retain handle and r to drive
	// SendBlocking/CloseConnection later.
	SetContext(handle int64, r *Reactor)

	// HandleBuffer delivers one chunk of bytes read from the connection.
	// buf is only valid for the duration of the call.
	HandleBuffer(buf []byte)

	// Finalize is called exactly once, when the connection's handler
	// refcount drops to zero. The handler must not be used afterward.
	Finalize()
}

// HandlerFactory mints a ConnectionHandler for each newly accepted
// connection. A nil return leaves the connection without a handler; it is
// still registered with the poller and is closed when its first bytes
// arrive.
type HandlerFactory interface {
	Get() ConnectionHandler
}

const receiverSize = 1024

// Reactor owns one listening socket and every connection accepted from it,
// dispatching readiness through a shared Poller across waitThreadCount
// worker goroutines.
type Reactor struct {
	acceptorHandle int64
	acceptorFD     int
	actualPort     int
	factory        HandlerFactory
	pollr          poller.Poller
	log            logger.Logger

	mu              sync.Mutex
	handleSeed      int64
	handleToFD      map[int64]int
	handlerLookup   map[int64]ConnectionHandler
	handlerRefcount map[int64]int

	waitGroup *errgroup.Group
	cancel    context.CancelFunc
}

// New binds host:port (port 0 picks an ephemeral port), starts waitThreadCount
// worker goroutines, and begins accepting connections. Every accepted
// connection is handed to a ConnectionHandler minted by factory.
func New(host string, port int, factory HandlerFactory, waitThreadCount int, log logger.Logger) (*Reactor, liberr.Error) {
	if waitThreadCount < 1 {
		waitThreadCount = 1
	}

	acceptorFD, err := sockutil.ListenStream(host, port, false)
	if err != nil {
		return nil, err
	}

	actualPort, err := sockutil.BoundPort(acceptorFD)
	if err != nil {
		sockutil.Close(acceptorFD)
		return nil, err
	}

	pollr, pollErr := poller.New()
	if pollErr != nil {
		sockutil.Close(acceptorFD)
		return nil, liberr.ErrSocketInit.Error(pollErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	r := &Reactor{
		acceptorFD:      acceptorFD,
		actualPort:      actualPort,
		factory:         factory,
		pollr:           pollr,
		log:             log,
		handleSeed:      -1,
		handleToFD:      make(map[int64]int),
		handlerLookup:   make(map[int64]ConnectionHandler),
		handlerRefcount: make(map[int64]int),
		waitGroup:       group,
		cancel:          cancel,
	}
	r.acceptorHandle = r.getNewConnectionHandle(acceptorFD)

	if sysErr := r.pollr.Add(r.acceptorHandle, acceptorFD); sysErr != nil {
		sockutil.Close(acceptorFD)
		return nil, liberr.ErrPollAdd.Error(sysErr)
	}

	for i := 0; i < waitThreadCount; i++ {
		group.Go(func() error {
			r.waitWorker(groupCtx)
			return nil
		})
	}

	return r, nil
}

// ActualPort reports the port the acceptor socket is bound to.
func (r *Reactor) ActualPort() int {
	return r.actualPort
}

func (r *Reactor) getNewConnectionHandle(fd int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handleSeed++
	handle := r.handleSeed
	r.handleToFD[handle] = fd
	return handle
}

func (r *Reactor) waitWorker(ctx context.Context) {
	for ctx.Err() == nil {
		r.pollr.ProcessNextBatch(r.handleUpcall)
	}
}

func (r *Reactor) handleUpcall(handle int64) {
	if handle == r.acceptorHandle {
		r.doConnectionAccept()
	} else {
		r.doConnectionUpcall(handle)
	}
}

func (r *Reactor) doConnectionAccept() {
	connFD, ok, err := sockutil.AcceptNonblocking(r.acceptorFD)
	if err != nil && r.log != nil {
		r.log.Debug("accept failed", logger.F("error", err))
	}

	if ok {
		handle := r.getNewConnectionHandle(connFD)
		r.upcallConnectionStarted(handle)
		if sysErr := r.pollr.Add(handle, connFD); sysErr != nil {
			r.completeConnectionSocket(handle)
		}
	}

	// Acceptor readiness is one-shot; always rearm regardless of whether a
	// connection was actually pending, since a wakeup can be spurious or
	// shared among several accept attempts racing the kernel backlog.
	if sysErr := r.pollr.Rearm(r.acceptorHandle, r.acceptorFD); sysErr != nil && r.log != nil {
		r.log.Error("acceptor rearm failed, accept loop may be stalled", logger.F("error", sysErr))
	}
}

func (r *Reactor) doConnectionUpcall(handle int64) {
	r.mu.Lock()
	fd, ok := r.handleToFD[handle]
	r.mu.Unlock()
	if !ok {
		return
	}

	closeSocket := false
	buf := make([]byte, receiverSize)
	for {
		n, ok, err := sockutil.ReceiveNonblocking(fd, buf)
		if err != nil {
			closeSocket = true
			break
		}
		if n == 0 {
			if !ok {
				closeSocket = true
			}
			break
		}
		r.upcallHandleBuffer(handle, buf[:n])
	}

	if !closeSocket {
		if sysErr := r.pollr.Rearm(handle, fd); sysErr != nil {
			closeSocket = true
		}
	}

	if closeSocket {
		r.completeConnectionSocket(handle)
	}
}

func (r *Reactor) completeConnectionSocket(handle int64) {
	r.mu.Lock()
	fd, ok := r.handleToFD[handle]
	if ok {
		delete(r.handleToFD, handle)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.pollr.TryRemove(handle, fd)
	r.upcallConnectionClosed(handle)
	sockutil.Close(fd)
}

// CloseConnection tears down handle's connection. Safe to call from a
// ConnectionHandler callback or from any other goroutine.
func (r *Reactor) CloseConnection(handle int64) {
	r.completeConnectionSocket(handle)
}

// SendBlocking writes buf to handle's connection, toggling it to blocking
// mode for the duration of the write. A write failure closes the
// connection.
func (r *Reactor) SendBlocking(handle int64, buf []byte) {
	r.mu.Lock()
	fd, ok := r.handleToFD[handle]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := sockutil.SendBlocking(fd, buf); err != nil {
		r.completeConnectionSocket(handle)
	}
}

func (r *Reactor) handlerRef(handle int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlerRefcount[handle]++
}

func (r *Reactor) handlerDeref(handle int64) {
	r.mu.Lock()
	r.handlerRefcount[handle]--
	var toFinalize ConnectionHandler
	if r.handlerRefcount[handle] == 0 {
		toFinalize = r.handlerLookup[handle]
		delete(r.handlerLookup, handle)
		delete(r.handlerRefcount, handle)
	}
	r.mu.Unlock()

	if toFinalize != nil {
		toFinalize.Finalize()
	}
}

func (r *Reactor) upcallConnectionStarted(handle int64) {
	handler := r.factory.Get()
	if handler == nil {
		if r.log != nil {
			r.log.Debug("handler factory returned nil", logger.F("handle", handle))
		}
		return
	}

	handler.SetContext(handle, r)

	r.mu.Lock()
	r.handlerLookup[handle] = handler
	r.handlerRefcount[handle] = 0
	r.mu.Unlock()

	r.handlerRef(handle)
}

func (r *Reactor) upcallConnectionClosed(handle int64) {
	r.mu.Lock()
	_, ok := r.handlerLookup[handle]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.handlerDeref(handle)
}

func (r *Reactor) upcallHandleBuffer(handle int64, buf []byte) {
	r.mu.Lock()
	handler, ok := r.handlerLookup[handle]
	if !ok {
		r.mu.Unlock()
		r.CloseConnection(handle)
		return
	}
	r.handlerRefcount[handle]++
	r.mu.Unlock()

	handler.HandleBuffer(buf)
	r.handlerDeref(handle)
}

// Stop halts every worker goroutine, closes every outstanding connection,
// and releases the poller and acceptor socket. It blocks until all workers
// have exited.
func (r *Reactor) Stop() {
	r.cancel()
	_ = r.waitGroup.Wait()

	r.mu.Lock()
	handles := make([]int64, 0, len(r.handleToFD))
	for handle := range r.handleToFD {
		if handle != r.acceptorHandle {
			handles = append(handles, handle)
		}
	}
	r.mu.Unlock()

	for _, handle := range handles {
		r.completeConnectionSocket(handle)
	}

	r.pollr.TryRemove(r.acceptorHandle, r.acceptorFD)
	_ = r.pollr.Close()
	sockutil.Close(r.acceptorFD)
}
