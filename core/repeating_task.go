package core

import (
	"context"
	"sync/atomic"
	"time"
)

// RepeatingTaskHandle controls the lifecycle of a repeating task.
type RepeatingTaskHandle interface {
	// Stop prevents further runs. A run already in progress completes.
	Stop()
	IsStopped() bool
}

// repeatingTask re-posts itself after each run and reports
// OwnershipTransferred, so the scheduler never releases it while it repeats.
type repeatingTask struct {
	fn       func(ctx context.Context)
	interval time.Duration
	stopped  atomic.Bool
}

func (t *repeatingTask) Stop() {
	t.stopped.Store(true)
}

func (t *repeatingTask) IsStopped() bool {
	return t.stopped.Load()
}

func (t *repeatingTask) Run(ctx context.Context) Disposition {
	if t.IsStopped() {
		return ConsumeAndDestroy
	}

	t.fn(ctx)

	s := SchedulerFromContext(ctx)
	if t.IsStopped() || s == nil || s.IsClosed() {
		return ConsumeAndDestroy
	}
	s.PostDelayedTask(t, t.interval)
	return OwnershipTransferred
}

// PostRepeatingTask runs fn now and then every interval until the handle is
// stopped or the scheduler shuts down.
func (s *Scheduler) PostRepeatingTask(fn func(ctx context.Context), interval time.Duration) RepeatingTaskHandle {
	return s.PostRepeatingTaskWithInitialDelay(fn, 0, interval)
}

// PostRepeatingTaskWithInitialDelay is PostRepeatingTask with the first run
// deferred by initialDelay.
func (s *Scheduler) PostRepeatingTaskWithInitialDelay(
	fn func(ctx context.Context),
	initialDelay, interval time.Duration,
) RepeatingTaskHandle {
	t := &repeatingTask{fn: fn, interval: interval}

	if initialDelay > 0 {
		s.PostDelayedTask(t, initialDelay)
	} else {
		s.PostTask(t)
	}
	return t
}
