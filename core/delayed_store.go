package core

import "container/heap"

// delayedKey orders delayed entries by deadline, then by submission order.
type delayedKey struct {
	fireAtMs int64
	order    OrderID
}

func (k delayedKey) less(o delayedKey) bool {
	if k.fireAtMs != o.fireAtMs {
		return k.fireAtMs < o.fireAtMs
	}
	return k.order < o.order
}

type delayedEntry struct {
	key   delayedKey
	task  Task
	index int // for heap interface
}

// delayedHeap implements heap.Interface
type delayedHeap []*delayedEntry

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].key.less(h[j].key) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// =============================================================================
// delayedStore: min-ordered store of deferred tasks. Guarded by the owning
// Scheduler's mutex.
// =============================================================================

type delayedStore struct {
	pq delayedHeap
}

func newDelayedStore() delayedStore {
	s := delayedStore{pq: make(delayedHeap, 0, defaultQueueCap)}
	heap.Init(&s.pq)
	return s
}

func (s *delayedStore) push(key delayedKey, task Task) {
	heap.Push(&s.pq, &delayedEntry{key: key, task: task})
}

func (s *delayedStore) peek() (delayedKey, bool) {
	if len(s.pq) == 0 {
		return delayedKey{}, false
	}
	return s.pq[0].key, true
}

func (s *delayedStore) popMin() (*delayedEntry, bool) {
	if len(s.pq) == 0 {
		return nil, false
	}
	return heap.Pop(&s.pq).(*delayedEntry), true
}

func (s *delayedStore) len() int {
	return len(s.pq)
}

// drain removes every entry in deadline order.
func (s *delayedStore) drain() []*delayedEntry {
	out := make([]*delayedEntry, 0, len(s.pq))
	for len(s.pq) > 0 {
		out = append(out, heap.Pop(&s.pq).(*delayedEntry))
	}
	return out
}
