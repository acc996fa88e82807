package core

import "sync"

const defaultTaskHistoryCapacity = 100

// executionHistory keeps the last len(slots) execution records. Record i of
// the worker's lifetime lives in slots[i%len(slots)], so seq alone locates
// the newest entry.
type executionHistory struct {
	mu    sync.Mutex
	slots []TaskExecutionRecord
	seq   uint64
}

func newExecutionHistory(capacity int) *executionHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &executionHistory{slots: make([]TaskExecutionRecord, capacity)}
}

// record stores r and returns its sequence number, starting at 1.
func (h *executionHistory) record(r TaskExecutionRecord) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	r.Seq = h.seq
	h.slots[(h.seq-1)%uint64(len(h.slots))] = r
	return h.seq
}

// recent returns up to limit retained records, newest first, that keep
// accepts. limit <= 0 means every retained record. A nil keep accepts all.
func (h *executionHistory) recent(limit int, keep func(TaskExecutionRecord) bool) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	retained := min(h.seq, uint64(len(h.slots)))
	var out []TaskExecutionRecord
	for seq := h.seq; seq > h.seq-retained; seq-- {
		r := h.slots[(seq-1)%uint64(len(h.slots))]
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (h *executionHistory) last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seq == 0 {
		return TaskExecutionRecord{}, false
	}
	return h.slots[(h.seq-1)%uint64(len(h.slots))], true
}
