// Package taskqueue provides named serial task queues, each driven by one
// dedicated worker goroutine.
//
// Callers post tasks to a queue instead of managing goroutines and locks.
// Everything posted to one queue runs on that queue's worker, one task at a
// time, so state owned by a queue needs no further synchronization.
//
// # Quick Start
//
// Create a queue and post work to it:
//
//	q := taskqueue.Create("io")
//	defer q.Close()
//
//	q.PostFunc(func(ctx context.Context) {
//		// runs on the "io" worker
//	})
//
// # Ordering
//
// Ready tasks run in the order they were posted. A delayed task never runs
// before its deadline; once the deadline has passed it is ordered against
// ready tasks by when it was posted:
//
//	q.PostDelayedFunc(a, 0)
//	q.PostFunc(b)
//	// a runs before b
//
// # Ownership
//
// A Task returns a Disposition. ConsumeAndDestroy hands the task back to the
// queue, which calls Release on tasks implementing Releaser. OwnershipTransferred
// tells the queue the task took care of itself, typically by re-posting.
// Tasks still queued at Close are released without running.
//
// # Registry
//
// A Registry maps names to queues. Route picks a queue by key so that all
// work for one key is serialized:
//
//	reg := taskqueue.NewRegistry()
//	reg.CreateMany("worker1", "worker2", "worker3")
//	q, _ := reg.Route(userID)
//
// # Waiting
//
// SignalEvent is a manual or auto reset event for waiting on work done by a
// queue. Never wait on a queue from its own tasks; IsCurrent tells you where
// you are.
//
//	done := taskqueue.NewSignalEvent(false, false)
//	q.PostFunc(func(ctx context.Context) { done.Signal() })
//	done.Wait(taskqueue.Forever)
package taskqueue
