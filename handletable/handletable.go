// Package handletable implements a refcounted lookup table mapping
// monotonic int64 handles to arbitrary payloads. A handle's reference count
// starts at one on creation; it is released by exactly as many Deref calls
// (optionally batched via the count parameter) as there were AddrefAndGet
// calls plus the initial creation reference. When the count reaches zero,
// the payload's finalizer runs once, outside the table's lock, so a
// finalizer that itself touches the table cannot deadlock against it.
package handletable

import (
	"sync"

	"github.com/google/uuid"

	liberr "github.com/sabouaram/httpengine/errors"
)

type entry struct {
	refCount  int
	payload   interface{}
	finalizer func()
	debugTag  string
}

// Table is a refcounted id->payload map, safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	seed    int64
	entries map[int64]*entry
}

// New builds an empty Table.
func New() *Table {
	return &Table{entries: make(map[int64]*entry), seed: -1}
}

// NewID registers payload under a freshly minted handle with an initial
// reference count of one, and returns that handle. payload must not be nil.
// finalizer, if non-nil, runs exactly once when the reference count drops
// to zero.
func (t *Table) NewID(payload interface{}, finalizer func()) (int64, liberr.Error) {
	if payload == nil {
		return 0, liberr.ErrHandleNilPayload.Error(nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seed++
	id := t.seed
	t.entries[id] = &entry{
		refCount:  1,
		payload:   payload,
		finalizer: finalizer,
		debugTag:  uuid.NewString(),
	}
	return id, nil
}

// AddrefAndGet increments id's reference count and returns its payload. ok
// is false if id does not currently name a live entry.
func (t *Table) AddrefAndGet(id int64) (payload interface{}, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.entries[id]
	if !found {
		return nil, false
	}
	e.refCount++
	return e.payload, true
}

// Deref releases count references on id. When the count reaches zero, the
// entry is removed and its finalizer (if any) runs after the lock is
// released, so the finalizer may safely call back into this table.
func (t *Table) Deref(id int64, count int) {
	if count < 1 {
		count = 1
	}

	var finalizer func()

	t.mu.Lock()
	e, found := t.entries[id]
	if found {
		e.refCount -= count
		if e.refCount <= 0 {
			finalizer = e.finalizer
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	if finalizer != nil {
		finalizer()
	}
}

// CleanAll forcibly runs every live entry's finalizer and empties the
// table, ignoring reference counts. It must only be called after every
// worker that could still be addreffing or dereffing handles has stopped;
// unlike Deref, finalizers here run while the lock is held, matching the
// original shutdown-time sweep this is grounded on.
func (t *Table) CleanAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, e := range t.entries {
		if e.finalizer != nil {
			e.finalizer()
		}
		delete(t.entries, id)
	}
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
