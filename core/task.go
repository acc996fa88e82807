package core

import (
	"context"
	"reflect"
	"runtime"
)

// =============================================================================
// Disposition: What the engine does with a task after it ran
// =============================================================================

// Disposition is returned by Task.Run and tells the scheduler who owns the
// task afterwards.
type Disposition int

const (
	// ConsumeAndDestroy: the scheduler releases the task right after Run returns.
	ConsumeAndDestroy Disposition = iota

	// OwnershipTransferred: the task re-posted itself or manages its own
	// lifetime. The scheduler drops its handle without releasing it.
	OwnershipTransferred
)

func (d Disposition) String() string {
	switch d {
	case ConsumeAndDestroy:
		return "consume_and_destroy"
	case OwnershipTransferred:
		return "ownership_transferred"
	default:
		return "unknown"
	}
}

// =============================================================================
// Task: The unit of work
// =============================================================================

// Task is a unit of work executed on a Scheduler's worker goroutine.
type Task interface {
	Run(ctx context.Context) Disposition
}

// Releaser is implemented by tasks that hold resources beyond their Run call.
// The scheduler calls Release exactly once when it destroys the task: after a
// ConsumeAndDestroy run, when the task is dropped at shutdown, or when the
// post is rejected. It is never called for OwnershipTransferred.
type Releaser interface {
	Release()
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context) Disposition

func (f TaskFunc) Run(ctx context.Context) Disposition { return f(ctx) }

// Closure adapts a plain function; it is always consumed after running.
type Closure func(ctx context.Context)

func (f Closure) Run(ctx context.Context) Disposition {
	f(ctx)
	return ConsumeAndDestroy
}

// cleanupTask runs cleanup when destroyed, whether or not it executed.
type cleanupTask struct {
	fn      func(ctx context.Context)
	cleanup func()
}

// WithCleanup returns a task that runs fn and guarantees cleanup runs once the
// task is destroyed, including when it is dropped unexecuted at shutdown.
func WithCleanup(fn func(ctx context.Context), cleanup func()) Task {
	return &cleanupTask{fn: fn, cleanup: cleanup}
}

func (t *cleanupTask) Run(ctx context.Context) Disposition {
	t.fn(ctx)
	return ConsumeAndDestroy
}

func (t *cleanupTask) Release() {
	if t.cleanup != nil {
		t.cleanup()
	}
}

// namedTask attaches a label used by history and logging.
type namedTask struct {
	Task
	name string
}

// Named labels a task for execution history and logs.
func Named(name string, task Task) Task {
	return &namedTask{Task: task, name: name}
}

func (t *namedTask) Release() {
	releaseTask(t.Task)
}

// releaseTask destroys a task the scheduler owns.
func releaseTask(task Task) {
	if r, ok := task.(Releaser); ok {
		r.Release()
	}
}

func resolveTaskName(task Task) string {
	if task == nil {
		return "anonymous"
	}
	if n, ok := task.(*namedTask); ok && n.name != "" {
		return n.name
	}

	v := reflect.ValueOf(task)
	if v.Kind() != reflect.Func {
		return reflect.TypeOf(task).String()
	}

	pc := v.Pointer()
	if pc == 0 {
		return "anonymous"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil || fn.Name() == "" {
		return "anonymous"
	}
	return fn.Name()
}
