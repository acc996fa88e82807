package core

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBlockingCallFromWorker is returned when a call that waits for the queue
// is made from the queue's own worker, which would wait on itself.
var ErrBlockingCallFromWorker = errors.New("taskqueue: blocking call from the scheduler's own worker")

// TaskPoster is anything tasks can be posted to.
type TaskPoster interface {
	PostTask(task Task)
	PostDelayedTask(task Task, delay time.Duration)
}

// Scheduler binds a dedicated worker goroutine to a named queue and executes
// tasks on it one at a time.
//
// Ready tasks run in submission order. Delayed tasks run no earlier than their
// deadline; once a deadline has passed, a delayed task and a ready task are
// ordered by which was submitted first. No two tasks of one Scheduler ever run
// concurrently.
//
// Shutdown stops the worker after the task in flight (if any) returns. Tasks
// still queued at that point are released without running.
type Scheduler struct {
	name string
	cfg  SchedulerConfig

	// Guarded by mu
	mu         sync.Mutex
	pending    pendingQueue
	delayed    delayedStore
	nextOrder  OrderID
	shouldQuit bool

	// Lifecycle handshakes and worker wake-up. Never held across mu.
	started *SignalEvent
	stopped *SignalEvent
	wake    *SignalEvent
	exited  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	closed       atomic.Bool
	running      atomic.Bool

	executed atomic.Uint64
	rejected atomic.Int64
	dropped  atomic.Int64
	panics   atomic.Int64

	history *executionHistory
}

var _ TaskPoster = (*Scheduler)(nil)

// nextTask is the worker's next step: quit, run task, or sleep.
type nextTask struct {
	quit     bool
	task     Task
	order    OrderID
	delayed  bool
	fireAtMs int64
	sleep    time.Duration
}

// NewScheduler creates a scheduler and starts its worker. It returns once the
// worker is registered and ready for work. cfg may be nil.
func NewScheduler(name string, cfg *SchedulerConfig) *Scheduler {
	resolved := cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		name:    name,
		cfg:     resolved,
		pending: newPendingQueue(),
		delayed: newDelayedStore(),
		started: NewSignalEvent(false, false),
		stopped: NewSignalEvent(false, false),
		wake:    NewSignalEvent(false, false),
		exited:  make(chan struct{}),
		cancel:  cancel,
		history: newExecutionHistory(resolved.HistoryCapacity),
	}
	s.ctx = withScheduler(ctx, s)

	s.started.SetWarnHandler(throttledWarn(resolved.Logger, time.Minute,
		"scheduler worker slow to start", F("queue", name)))
	s.stopped.SetWarnHandler(throttledWarn(resolved.Logger, time.Minute,
		"scheduler worker slow to stop, a running task may be blocking", F("queue", name)))

	go s.run()

	s.started.WaitWithWarning(Forever, resolved.LifecycleWarnAfter)
	resolved.Logger.Debug("scheduler started", F("queue", name))
	return s
}

// Name returns the queue name.
func (s *Scheduler) Name() string {
	return s.name
}

// IsCurrent reports whether the caller is running on this scheduler's worker.
func (s *Scheduler) IsCurrent() bool {
	return CurrentScheduler() == s
}

// IsClosed returns true once Shutdown has been called.
func (s *Scheduler) IsClosed() bool {
	return s.closed.Load()
}

// =============================================================================
// Posting
// =============================================================================

// PostTask appends task to the ready FIFO. It never waits for execution.
func (s *Scheduler) PostTask(task Task) {
	if task == nil {
		return
	}

	s.mu.Lock()
	if s.shouldQuit {
		s.mu.Unlock()
		s.reject(task, "shutdown")
		return
	}
	order := s.nextOrder
	s.nextOrder++
	s.pending.push(order, task)
	pending, delayed := s.pending.len(), s.delayed.len()
	s.mu.Unlock()

	// The task must be in the store before the worker is woken, otherwise a
	// worker deciding to sleep could miss it.
	s.wake.Signal()
	s.cfg.Metrics.RecordQueueDepth(s.name, pending, delayed)
}

// PostDelayedTask schedules task to run no earlier than delay from now.
// Negative delays are treated as zero.
func (s *Scheduler) PostDelayedTask(task Task, delay time.Duration) {
	if task == nil {
		return
	}
	fireAt := deadlineMillis(s.cfg.Clock.Now(), delay)

	s.mu.Lock()
	if s.shouldQuit {
		s.mu.Unlock()
		s.reject(task, "shutdown")
		return
	}
	order := s.nextOrder
	s.nextOrder++
	s.delayed.push(delayedKey{fireAtMs: fireAt, order: order}, task)
	pending, delayed := s.pending.len(), s.delayed.len()
	s.mu.Unlock()

	s.wake.Signal()
	s.cfg.Metrics.RecordQueueDepth(s.name, pending, delayed)
}

// PostFunc posts a closure.
func (s *Scheduler) PostFunc(fn func(ctx context.Context)) {
	s.PostTask(Closure(fn))
}

// PostDelayedFunc posts a delayed closure.
func (s *Scheduler) PostDelayedFunc(fn func(ctx context.Context), delay time.Duration) {
	s.PostDelayedTask(Closure(fn), delay)
}

func (s *Scheduler) reject(task Task, reason string) {
	releaseTask(task)
	s.rejected.Add(1)
	s.cfg.Metrics.RecordTaskRejected(s.name, reason)
	s.cfg.RejectedTaskHandler.HandleRejectedTask(s.name, reason)
}

// =============================================================================
// Shutdown
// =============================================================================

// Shutdown stops the worker and releases every task still queued without
// running it. It blocks until the task in flight, if any, returns. The task
// context is cancelled first so cooperative tasks can return early.
//
// Calling Shutdown from the scheduler's own worker panics with
// ErrShutdownFromWorker. Repeated calls are no-ops.
func (s *Scheduler) Shutdown() {
	if s.IsCurrent() {
		panic(ErrShutdownFromWorker)
	}

	s.shutdownOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		s.shouldQuit = true
		s.mu.Unlock()

		s.wake.Signal()
		s.cancel()

		s.stopped.WaitWithWarning(Forever, s.cfg.LifecycleWarnAfter)
		<-s.exited

		s.dropRemaining()
		s.cfg.Logger.Debug("scheduler stopped", F("queue", s.name), F("executed", s.executed.Load()))
	})
}

// dropRemaining releases queued tasks after the worker has exited.
func (s *Scheduler) dropRemaining() {
	s.mu.Lock()
	pending := s.pending.drain()
	delayed := s.delayed.drain()
	s.mu.Unlock()

	for _, e := range pending {
		releaseTask(e.task)
	}
	for _, e := range delayed {
		releaseTask(e.task)
	}

	n := len(pending) + len(delayed)
	if n > 0 {
		s.dropped.Add(int64(n))
		s.cfg.Metrics.RecordTasksDropped(s.name, n)
		s.cfg.Logger.Debug("dropped queued tasks at shutdown", F("queue", s.name), F("count", n))
	}
	s.cfg.Metrics.RecordQueueDepth(s.name, 0, 0)
}

// =============================================================================
// Worker
// =============================================================================

// run occupies the dedicated worker goroutine.
func (s *Scheduler) run() {
	defer close(s.exited)

	if s.cfg.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	scope := enterScheduler(s)
	defer scope.exit()

	s.started.Signal()
	s.processTasks()
	s.stopped.Signal()
}

func (s *Scheduler) processTasks() {
	for {
		next := s.selectNextTask()

		if next.quit {
			return
		}

		if next.task != nil {
			s.runTask(next)
			// more ready work may exist; re-evaluate without sleeping
			continue
		}

		s.wake.Wait(s.sleepBound(next.sleep))
	}
}

// sleepBound caps a finite sleep at ClockRecheck. An unbounded sleep has no
// deadline to miss and is left alone.
func (s *Scheduler) sleepBound(sleep time.Duration) time.Duration {
	recheck := s.cfg.ClockRecheck
	if recheck > 0 && sleep != Forever && sleep > recheck {
		return recheck
	}
	return sleep
}

// selectNextTask is called only from the worker goroutine.
func (s *Scheduler) selectNextTask() nextTask {
	nowMs := s.cfg.Clock.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldQuit {
		return nextTask{quit: true}
	}

	front, hasPending := s.pending.front()
	earliest, hasDelayed := s.delayed.peek()

	d := chooseNext(nowMs, front.order, hasPending, earliest, hasDelayed)
	switch d.source {
	case sourcePending:
		e, _ := s.pending.pop()
		return nextTask{task: e.task, order: e.order}
	case sourceDelayed:
		e, _ := s.delayed.popMin()
		return nextTask{task: e.task, order: e.key.order, delayed: true, fireAtMs: e.key.fireAtMs}
	default:
		return nextTask{sleep: d.sleep}
	}
}

func (s *Scheduler) runTask(next nextTask) {
	rec := TaskExecutionRecord{
		Order:     next.order,
		Name:      resolveTaskName(next.task),
		QueueName: s.name,
		Delayed:   next.delayed,
	}
	if next.delayed {
		rec.FireAt = time.UnixMilli(next.fireAtMs)
		rec.Lateness = max(s.cfg.Clock.Now().Sub(rec.FireAt), 0)
		s.cfg.Metrics.RecordTaskLateness(s.name, rec.Lateness)
	}

	rec.StartedAt = time.Now()
	s.running.Store(true)
	rec.Disposition, rec.Panicked = s.execute(next.task)
	s.running.Store(false)
	rec.Duration = time.Since(rec.StartedAt)

	s.executed.Add(1)
	s.cfg.Metrics.RecordTaskDuration(s.name, rec.Duration)
	s.history.record(rec)

	if rec.Panicked || rec.Disposition != OwnershipTransferred {
		releaseTask(next.task)
	}
}

// execute runs one task, applying the panic policy.
func (s *Scheduler) execute(task Task) (d Disposition, panicked bool) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if err, ok := rec.(error); ok && errors.Is(err, ErrShutdownFromWorker) {
			// misuse of the queue, not a task failure: fatal under every policy
			s.cfg.Logger.Error("shutdown called from the queue's own worker", F("queue", s.name))
			panic(rec)
		}
		panicked = true
		d = ConsumeAndDestroy
		stack := debug.Stack()

		s.panics.Add(1)
		s.cfg.Metrics.RecordTaskPanic(s.name, rec)
		s.cfg.PanicHandler.HandlePanic(s.ctx, s.name, rec, stack)

		if s.cfg.PanicPolicy == PanicPolicyCrash {
			s.running.Store(false)
			panic(&PanicError{Queue: s.name, Value: rec, Stack: stack})
		}
	}()

	return task.Run(s.ctx), false
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until every task posted before the call has run.
// It posts a barrier task and waits for it on a SignalEvent.
//
// Returns ErrSchedulerClosed if the queue shuts down before the barrier runs,
// ErrBlockingCallFromWorker when called from the worker, or ctx.Err().
//
// Delayed tasks whose deadline has not passed are not waited for.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	if s.IsClosed() {
		return ErrSchedulerClosed
	}
	if s.IsCurrent() {
		return ErrBlockingCallFromWorker
	}

	done := NewSignalEvent(true, false)
	var ran atomic.Bool
	s.PostTask(Named("wait-idle-barrier", WithCleanup(func(ctx context.Context) {
		ran.Store(true)
	}, done.Signal)))

	if err := done.WaitContext(ctx); err != nil {
		return err
	}
	if !ran.Load() {
		return ErrSchedulerClosed
	}
	return nil
}

// FlushAsync runs callback on the worker after all tasks posted before it.
func (s *Scheduler) FlushAsync(callback func()) {
	s.PostFunc(func(ctx context.Context) {
		callback()
	})
}

// =============================================================================
// Introspection
// =============================================================================

// Stats returns a snapshot of queue state.
func (s *Scheduler) Stats() QueueStats {
	s.mu.Lock()
	pending, delayed := s.pending.len(), s.delayed.len()
	s.mu.Unlock()

	stats := QueueStats{
		Name:     s.name,
		Pending:  pending,
		Delayed:  delayed,
		Running:  s.running.Load(),
		Executed: s.executed.Load(),
		Rejected: s.rejected.Load(),
		Dropped:  s.dropped.Load(),
		Panics:   s.panics.Load(),
		Closed:   s.IsClosed(),
	}
	if last, ok := s.history.last(); ok {
		stats.LastOrder = last.Order
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt()
	}
	return stats
}

// RecentTasks returns up to limit execution records, newest first.
// limit <= 0 returns every retained record.
func (s *Scheduler) RecentTasks(limit int) []TaskExecutionRecord {
	return s.history.recent(limit, nil)
}

// RecentDelayedTasks is RecentTasks restricted to tasks that came from the
// delayed store, which carry their deadline and lateness.
func (s *Scheduler) RecentDelayedTasks(limit int) []TaskExecutionRecord {
	return s.history.recent(limit, func(r TaskExecutionRecord) bool { return r.Delayed })
}
