// Package timerqueue implements a deadline-ordered queue of callback
// contexts serviced by a fixed pool of worker goroutines. Each worker polls
// for the earliest due bucket every few milliseconds; Stop is idempotent
// and, once called, forces every worker to drain all remaining buckets
// immediately regardless of their deadline before exiting, so no queued
// timer is silently dropped at shutdown.
package timerqueue

import (
	"sort"
	"sync"
	"time"

	liberr "github.com/sabouaram/httpengine/errors"
)

// Context is the opaque payload handed back to Callback when a timer fires.
type Context struct {
	Value1 int64
	Value2 int64
}

// Callback is invoked once per fired Context, on one of the queue's worker
// goroutines.
type Callback func(Context)

const pollPeriod = 5 * time.Millisecond

// Queue is a deadline-ordered multimap of pending Contexts plus the worker
// pool draining it.
type Queue struct {
	mu       sync.Mutex
	items    map[int64][]Context
	running  bool
	stopped  bool
	callback Callback
	wg       sync.WaitGroup
	nowFn    func() int64
}

// New starts workerCount worker goroutines that invoke callback for every
// Context whose deadline has elapsed.
func New(callback Callback, workerCount int) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	q := &Queue{
		items:    make(map[int64][]Context),
		running:  true,
		callback: callback,
		nowFn:    nowEpochMillis,
	}
	q.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go q.worker()
	}
	return q
}

func nowEpochMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// AddItem schedules context to fire at or after epochCutoffMillis. It
// returns ErrTimerStopped if Stop has already been called.
func (q *Queue) AddItem(context Context, epochCutoffMillis int64) liberr.Error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return liberr.ErrTimerStopped.Error(nil)
	}
	q.items[epochCutoffMillis] = append(q.items[epochCutoffMillis], context)
	return nil
}

// Stop marks the queue as no longer accepting new items, then blocks until
// every worker has drained all remaining buckets (regardless of deadline)
// and exited. It is safe to call more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.stopped = true
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		batch, more := q.nextBatch()
		if len(batch) == 0 {
			if !more {
				return
			}
			time.Sleep(pollPeriod)
			continue
		}
		for _, c := range batch {
			q.callback(c)
		}
	}
}

// nextBatch pops the earliest bucket due to fire, or — once the queue has
// been told to stop — the earliest bucket regardless of whether it is due,
// so Stop drains every pending timer instead of waiting out its deadline.
// more is false only once the queue is stopped and empty, the worker's
// signal to exit.
func (q *Queue) nextBatch() (batch []Context, more bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, q.running
	}

	keys := make([]int64, 0, len(q.items))
	for k := range q.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	earliest := keys[0]
	if q.running && earliest > q.nowFn() {
		return nil, true
	}

	batch = q.items[earliest]
	delete(q.items, earliest)
	return batch, true
}

// Len reports the number of distinct deadline buckets still pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
