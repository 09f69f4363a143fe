package planning

import (
	"container/heap"

	"github.com/aerofleet/dronesim/gridcache"
)

// pqEntry is one (key, insertion-order, cell) tuple pushed onto a queue.
// The insertion counter breaks ties deterministically and, combined with
// lazy invalidation, lets a cell be pushed again with a better key without
// removing its earlier, now-stale entries.
type pqEntry struct {
	key   float64
	seq   int
	coord gridcache.Coord
}

// pqueue is a container/heap priority queue ordered by (key, seq). Callers
// never remove/decrease a specific entry; instead they push a fresh entry
// with the improved key and discard stale ones lazily on pop, the same
// pattern the bandit core's four heaps rely on.
type pqueue []pqEntry

func (q pqueue) Len() int { return len(q) }

func (q pqueue) Less(i, j int) bool {
	if q[i].key != q[j].key {
		return q[i].key < q[j].key
	}
	return q[i].seq < q[j].seq
}

func (q pqueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pqueue) Push(x interface{}) {
	*q = append(*q, x.(pqEntry))
}

func (q *pqueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	*q = old[:n-1]
	return entry
}

var _ heap.Interface = (*pqueue)(nil)

// push and pop wrap container/heap so call sites don't juggle the
// interface{} round trip.
func (q *pqueue) push(e pqEntry) {
	heap.Push(q, e)
}

func (q *pqueue) pop() pqEntry {
	return heap.Pop(q).(pqEntry)
}
