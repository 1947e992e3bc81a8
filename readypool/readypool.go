// Package readypool implements a LIFO set of request ids: the most
// recently inserted id is the first one handed back by PopCandidate. It
// backs the server's ready pool of parsed requests awaiting Checkout, where
// the newest request, which has the most of its latency budget left, is
// served before older ones.
package readypool

import (
	"sync"

	liberr "github.com/sabouaram/httpengine/errors"
)

type node struct {
	item       int64
	prev, next *node
}

// Pool is an O(1) insert/erase/pop LIFO set, safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	lookup map[int64]*node
	head   node // sentinel; head.next is the most-recently-inserted item
}

// New builds an empty Pool.
func New() *Pool {
	p := &Pool{lookup: make(map[int64]*node)}
	p.head.next = &p.head
	p.head.prev = &p.head
	return p
}

// Insert adds item to the pool. item must not already be present.
func (p *Pool) Insert(item int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.lookup[item]; exists {
		panic(liberr.ErrPoolDuplicate.Error(nil).Error())
	}

	n := &node{item: item}
	p.lookup[item] = n
	p.insertAfterHead(n)
}

// Erase removes item from the pool if present; a no-op otherwise.
func (p *Pool) Erase(item int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.lookup[item]
	if !ok {
		return
	}
	p.unlink(n)
	delete(p.lookup, item)
}

// PopCandidate removes and returns the most recently inserted item. ok is
// false when the pool is empty.
func (p *Pool) PopCandidate() (value int64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.head.next == &p.head {
		return 0, false
	}
	n := p.head.next
	value = n.item
	p.unlink(n)
	delete(p.lookup, value)
	return value, true
}

// Len reports the current pool size.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lookup)
}

func (p *Pool) insertAfterHead(n *node) {
	n.next = p.head.next
	n.prev = &p.head
	p.head.next.prev = n
	p.head.next = n
}

func (p *Pool) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}
