package id

import (
	"github.com/rhartert/yagh"

	"github.com/rhartert/satid/internal/sat"
)

// bfsQueue is a FIFO worklist of variables backed by github.com/rhartert/yagh,
// giving the BFS-mode unfounded-set search (spec §4.3 step 2) and the
// cycle-free initialization pass (step 4) a deterministic pop order instead
// of a plain slice, mirroring internal/sat/ordering.go's use of the same
// heap for decision ordering and internal/agg's reserve pool.
type bfsQueue struct {
	heap  *yagh.IntMap[int64]
	elems []sat.Var
	next  int64
	size  int
}

func newBFSQueue() *bfsQueue {
	return &bfsQueue{heap: yagh.New[int64](0)}
}

func (q *bfsQueue) push(v sat.Var) {
	slot := len(q.elems)
	q.elems = append(q.elems, v)
	q.heap.GrowBy(1)
	q.heap.Put(slot, q.next)
	q.next++
	q.size++
}

func (q *bfsQueue) pop() (sat.Var, bool) {
	if q.size == 0 {
		return 0, false
	}
	e, ok := q.heap.Pop()
	if !ok {
		return 0, false
	}
	q.size--
	return q.elems[e.Elem], true
}
