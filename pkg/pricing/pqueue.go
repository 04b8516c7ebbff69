package pricing

import "container/heap"

// LessFunc orders two items of a PriorityQueue; it returns true when a
// should be popped before b.
type LessFunc[T any] func(a, b T) bool

// heapAdapter is the unexported container/heap.Interface implementation
// backing PriorityQueue. It is kept separate from PriorityQueue itself
// so PriorityQueue's public surface stays a plain generic container
// rather than also exposing the heap package's Push(any)/Pop(any) shape.
type heapAdapter[T any] struct {
	items []T
	less  LessFunc[T]
}

func (h *heapAdapter[T]) Len() int            { return len(h.items) }
func (h *heapAdapter[T]) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *heapAdapter[T]) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *heapAdapter[T]) Push(x interface{})  { h.items = append(h.items, x.(T)) }
func (h *heapAdapter[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// PriorityQueue is a binary heap ordered by a swappable LessFunc, used
// by the Colpool (reduced-cost vs. age comparators, §4.2) and the
// PricingController (job comparator, §4.4).
type PriorityQueue[T any] struct {
	h *heapAdapter[T]
}

// NewPriorityQueue builds an empty PriorityQueue ordered by less.
func NewPriorityQueue[T any](less LessFunc[T]) *PriorityQueue[T] {
	return &PriorityQueue[T]{h: &heapAdapter[T]{less: less}}
}

// Len returns the number of items currently queued.
func (pq *PriorityQueue[T]) Len() int { return pq.h.Len() }

// Push inserts item, restoring the heap invariant.
func (pq *PriorityQueue[T]) Push(item T) { heap.Push(pq.h, item) }

// Pop removes and returns the item at the front of the queue according
// to the current LessFunc. ok is false when the queue was empty.
func (pq *PriorityQueue[T]) Pop() (item T, ok bool) {
	if pq.h.Len() == 0 {
		return item, false
	}
	return heap.Pop(pq.h).(T), true
}

// Peek returns the front item without removing it. ok is false when the
// queue is empty.
func (pq *PriorityQueue[T]) Peek() (item T, ok bool) {
	if pq.h.Len() == 0 {
		return item, false
	}
	return pq.h.items[0], true
}

// Items returns the queue's backing slice in heap (not sorted) order.
// Callers must not retain it across a subsequent mutating call.
func (pq *PriorityQueue[T]) Items() []T { return pq.h.items }

// RemoveAt removes and returns the item at heap-internal index i,
// restoring the heap invariant.
func (pq *PriorityQueue[T]) RemoveAt(i int) T {
	return heap.Remove(pq.h, i).(T)
}

// SetLess swaps the ordering comparator and re-heapifies in place. Used
// by Colpool.DeleteOldColumns / DeleteOldestColumns to switch to the
// age comparator and back to the reduced-cost comparator (§4.2, §9).
func (pq *PriorityQueue[T]) SetLess(less LessFunc[T]) {
	pq.h.less = less
	heap.Init(pq.h)
}

// Reheapify restores the heap invariant after external mutation of the
// cached sort keys (e.g. Colpool.ResortColumns after reduced costs
// change out from under the queue).
func (pq *PriorityQueue[T]) Reheapify() { heap.Init(pq.h) }

// Clear empties the queue.
func (pq *PriorityQueue[T]) Clear() { pq.h.items = nil }
