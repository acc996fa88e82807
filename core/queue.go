package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// OrderID is the submission sequence number shared by both stores.
type OrderID uint64

type pendingEntry struct {
	order OrderID
	task  Task
}

// =============================================================================
// pendingQueue: FIFO of ready tasks. Not synchronized; the owning Scheduler's
// mutex guards it.
// =============================================================================

type pendingQueue struct {
	entries []pendingEntry
}

func newPendingQueue() pendingQueue {
	return pendingQueue{entries: make([]pendingEntry, 0, defaultQueueCap)}
}

func (q *pendingQueue) push(order OrderID, task Task) {
	q.entries = append(q.entries, pendingEntry{order: order, task: task})
}

func (q *pendingQueue) front() (pendingEntry, bool) {
	if len(q.entries) == 0 {
		return pendingEntry{}, false
	}
	return q.entries[0], true
}

func (q *pendingQueue) pop() (pendingEntry, bool) {
	if len(q.entries) == 0 {
		return pendingEntry{}, false
	}

	entry := q.entries[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.entries[0] = pendingEntry{}
	q.entries = q.entries[1:]
	q.maybeCompact()

	return entry, true
}

func (q *pendingQueue) len() int {
	return len(q.entries)
}

// drain removes and returns every entry, oldest first.
func (q *pendingQueue) drain() []pendingEntry {
	out := q.entries
	q.entries = make([]pendingEntry, 0, defaultQueueCap)
	return out
}

func (q *pendingQueue) maybeCompact() {
	n := len(q.entries)
	c := cap(q.entries)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.entries = make([]pendingEntry, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]pendingEntry, n, newCap)
	copy(newSlice, q.entries)
	q.entries = newSlice
}
