package taskqueue

import (
	"context"
	"time"

	"github.com/Swind/go-taskqueue/core"
)

// TaskQueue is the public handle of a named queue. It forwards to the
// scheduler engine and shuts it down on Close.
type TaskQueue struct {
	impl *core.Scheduler
}

var _ core.TaskPoster = (*TaskQueue)(nil)

// Create starts a queue and returns once its worker is ready.
func Create(name string, opts ...Option) *TaskQueue {
	return &TaskQueue{impl: core.NewScheduler(name, buildConfig(opts))}
}

// Name returns the queue name.
func (q *TaskQueue) Name() string {
	return q.impl.Name()
}

// Scheduler returns the non-owning engine handle.
func (q *TaskQueue) Scheduler() *core.Scheduler {
	return q.impl
}

// IsCurrent reports whether the caller runs on this queue. Use it to avoid
// blocking on the queue from inside its own tasks.
func (q *TaskQueue) IsCurrent() bool {
	return q.impl.IsCurrent()
}

// PostTask takes ownership of task and runs it in FIFO order.
func (q *TaskQueue) PostTask(task Task) {
	q.impl.PostTask(task)
}

// PostFunc posts a closure.
func (q *TaskQueue) PostFunc(fn func(ctx context.Context)) {
	q.impl.PostFunc(fn)
}

// PostDelayedTask runs task no earlier than delay from now.
func (q *TaskQueue) PostDelayedTask(task Task, delay time.Duration) {
	q.impl.PostDelayedTask(task, delay)
}

// PostDelayedFunc posts a delayed closure.
func (q *TaskQueue) PostDelayedFunc(fn func(ctx context.Context), delay time.Duration) {
	q.impl.PostDelayedFunc(fn, delay)
}

// PostRepeatingTask runs fn now and every interval after.
func (q *TaskQueue) PostRepeatingTask(fn func(ctx context.Context), interval time.Duration) RepeatingTaskHandle {
	return q.impl.PostRepeatingTask(fn, interval)
}

// WaitIdle blocks until everything posted before the call has run.
func (q *TaskQueue) WaitIdle(ctx context.Context) error {
	return q.impl.WaitIdle(ctx)
}

// Stats returns a snapshot of the queue.
func (q *TaskQueue) Stats() QueueStats {
	return q.impl.Stats()
}

// Close shuts the queue down. Queued tasks are released without running.
// It must not be called from the queue's own tasks.
func (q *TaskQueue) Close() {
	q.impl.Shutdown()
}
