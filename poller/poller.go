// Package poller provides edge-triggered, one-shot readiness notification
// for raw, non-blocking sockets. On Linux it is backed by epoll
// (EPOLLIN|EPOLLET|EPOLLONESHOT); on every other platform it falls back to a
// portable poll-based implementation with the same one-shot contract. Both
// backends satisfy the Poller interface, so the reactor that drives them is
// platform-agnostic.
package poller

// Upcall is invoked once per fd that became readable, carrying the opaque
// handle id the caller registered it under.
type Upcall func(handle int64)

// Poller multiplexes readiness across many registered file descriptors,
// delivering each one exactly once per readiness event (one-shot) until it
// is rearmed.
type Poller interface {
	// Add registers fd for one-shot readable notification, tagged with
	// handle. fd must not already be registered.
	Add(handle int64, fd int) error

	// Rearm re-registers fd for another one-shot readable notification
	// after a prior notification has been consumed.
	Rearm(handle int64, fd int) error

	// Remove unregisters fd unconditionally.
	Remove(handle int64, fd int) error

	// TryRemove unregisters fd if, and only if, it is still registered
	// under handle; it never errors. On epoll this is a no-op, since the
	// kernel drops a closed descriptor from the interest list on its own;
	// on the poll fallback it performs the real removal under lock, which
	// is the only backend where a stale registration could otherwise be
	// handed to a second waiter.
	TryRemove(handle int64, fd int)

	// ProcessNextBatch blocks for a short, bounded interval waiting for
	// readiness, then invokes up once per fd that became readable. It
	// returns after one wait/dispatch cycle so callers can interleave it
	// with shutdown checks.
	ProcessNextBatch(up Upcall)

	// Close releases backend resources (e.g. the epoll fd).
	Close() error
}
