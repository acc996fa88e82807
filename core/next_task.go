package core

import "time"

type taskSource int

const (
	sourceNone taskSource = iota
	sourcePending
	sourceDelayed
)

// nextDecision is what the worker should do next when it is not quitting.
type nextDecision struct {
	source taskSource
	// sleep bounds the wait when source is sourceNone; Forever if both stores
	// are empty.
	sleep time.Duration
}

// chooseNext picks between the front of the pending FIFO and the earliest
// delayed entry. A due delayed entry loses only to a pending entry that was
// submitted before it, so both stores share one submission order once
// deadlines have passed.
func chooseNext(nowMs int64, pendingFront OrderID, hasPending bool, earliest delayedKey, hasDelayed bool) nextDecision {
	sleep := Forever

	if hasDelayed {
		if nowMs >= earliest.fireAtMs {
			if hasPending && pendingFront < earliest.order {
				return nextDecision{source: sourcePending}
			}
			return nextDecision{source: sourceDelayed}
		}
		sleep = time.Duration(earliest.fireAtMs-nowMs) * time.Millisecond
	}

	if hasPending {
		return nextDecision{source: sourcePending}
	}
	return nextDecision{source: sourceNone, sleep: sleep}
}

// deadlineMillis converts now+delay to epoch milliseconds. A positive delay
// rounds up so the deadline is never earlier than now+delay. A zero or
// negative delay truncates, so the task is due at once.
func deadlineMillis(now time.Time, delay time.Duration) int64 {
	if delay <= 0 {
		return now.UnixMilli()
	}
	ns := now.Add(delay).UnixNano()
	ms := ns / int64(time.Millisecond)
	if ns%int64(time.Millisecond) != 0 {
		ms++
	}
	return ms
}
