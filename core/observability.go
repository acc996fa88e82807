package core

import "time"

// TaskExecutionRecord describes one task the worker ran.
type TaskExecutionRecord struct {
	// Seq counts executions on this scheduler, starting at 1.
	Seq uint64
	// Order is the submission order the task was given when posted.
	Order     OrderID
	Name      string
	QueueName string

	// Delayed is set for tasks taken from the delayed store. FireAt is their
	// deadline and Lateness how far past it they started.
	Delayed  bool
	FireAt   time.Time
	Lateness time.Duration

	Disposition Disposition
	Panicked    bool
	StartedAt   time.Time
	Duration    time.Duration
}

// FinishedAt is when the task returned.
func (r TaskExecutionRecord) FinishedAt() time.Time {
	return r.StartedAt.Add(r.Duration)
}

// QueueStats represents runtime observability state for a queue.
type QueueStats struct {
	Name         string
	Pending      int
	Delayed      int
	Running      bool
	Executed     uint64
	Rejected     int64
	Dropped      int64
	Panics       int64
	Closed       bool
	LastOrder    OrderID
	LastTaskName string
	LastTaskAt   time.Time
}
