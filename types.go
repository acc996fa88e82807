package taskqueue

import "github.com/Swind/go-taskqueue/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskqueue package for most use cases.

// Task is the unit of work
type Task = core.Task

// TaskFunc adapts a function returning a Disposition
type TaskFunc = core.TaskFunc

// Closure adapts a plain function that is consumed after running
type Closure = core.Closure

// Disposition tells the engine who owns a task after it ran
type Disposition = core.Disposition

// Releaser is implemented by tasks that need cleanup on destruction
type Releaser = core.Releaser

// SignalEvent is the manual/auto reset wait primitive
type SignalEvent = core.SignalEvent

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle = core.RepeatingTaskHandle

// QueueStats is a queue snapshot
type QueueStats = core.QueueStats

const (
	ConsumeAndDestroy    = core.ConsumeAndDestroy
	OwnershipTransferred = core.OwnershipTransferred
	Forever              = core.Forever
)

var (
	NewSignalEvent = core.NewSignalEvent
	WithCleanup    = core.WithCleanup
	Named          = core.Named
)

// CurrentScheduler returns the scheduler driving the calling goroutine
var CurrentScheduler = core.CurrentScheduler
