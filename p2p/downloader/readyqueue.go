package downloader

import "container/heap"

// readyBatch is one fetched-and-parsed batch waiting for its turn to
// be handed to the blockchain manager in strict height order.
type readyBatch struct {
	startHeight uint64
	blocks []PreparedBlock
	byteSize int
}

// readyHeap is a container/heap min-heap over readyBatch.startHeight.
// container/heap is used directly rather than a priority queue keyed
// by float64 priority, since the ordering key here is a plain uint64.
type readyHeap []*readyBatch

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool { return h[i].startHeight < h[j].startHeight }
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(*readyBatch)) }
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ReadyQueue buffers completed batches until they can be delivered in
// order, applying byte-accounted back-pressure so a burst of fast
// peers can't buffer unboundedly far ahead of a slow manager.
type ReadyQueue struct {
	h readyHeap
	nextWant uint64
	bufferBytes int
	maxBytes int
}

func NewReadyQueue(startHeight uint64, maxBytes int) *ReadyQueue {
	return &ReadyQueue{nextWant: startHeight, maxBytes: maxBytes}
}

// HasRoom reports whether the buffer budget allows dispatching another
// batch fetch right now.
func (q *ReadyQueue) HasRoom() bool { return q.bufferBytes < q.maxBytes }

// Push inserts a completed batch. Safe to call out of height order.
func (q *ReadyQueue) Push(b *readyBatch) {
	heap.Push(&q.h, b)
	q.bufferBytes += b.byteSize
}

// PopReady returns the next batch if (and only if) it is the one
// immediately expected next, nil otherwise — the manager must wait for
// the gap to fill rather than accept out-of-order delivery.
func (q *ReadyQueue) PopReady() *readyBatch {
	if len(q.h) == 0 || q.h[0].startHeight != q.nextWant {
		return nil
	}
	b := heap.Pop(&q.h).(*readyBatch)
	q.bufferBytes -= b.byteSize
	q.nextWant += uint64(len(b.blocks))
	return b
}

// Len reports how many out-of-order batches are currently buffered.
func (q *ReadyQueue) Len() int { return len(q.h) }
