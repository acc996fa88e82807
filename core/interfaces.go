package core

import (
	"context"
	"time"

	"github.com/jacobsa/timeutil"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe; handlers are shared between queues.
type PanicHandler interface {
	// HandlePanic is called on the worker goroutine of the queue that panicked.
	//
	// Parameters:
	// - ctx: The task's context (carries the scheduler)
	// - queueName: The name of the queue where the panic occurred
	// - panicInfo: The recovered value
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, panicInfo any, stackTrace []byte)
}

// LoggingPanicHandler reports panics through a Logger.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, queueName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("queue", queueName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// PanicPolicy selects what the worker does after a task panics.
type PanicPolicy int

const (
	// PanicPolicyRecover isolates the failure: the task is released and the
	// queue keeps running. A task that calls Shutdown on its own queue is not
	// recovered; that panic always propagates.
	PanicPolicyRecover PanicPolicy = iota

	// PanicPolicyCrash re-panics after reporting, terminating the process like
	// an unguarded failure on a dedicated thread would.
	PanicPolicyCrash
)

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting queue metrics.
// Methods should be non-blocking and fast; they run on worker and poster
// goroutines.
type Metrics interface {
	// RecordTaskDuration records how long a task's Run took.
	RecordTaskDuration(queueName string, duration time.Duration)

	// RecordTaskLateness records how far past its deadline a delayed task
	// started.
	RecordTaskLateness(queueName string, lateness time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the current sizes of both stores.
	RecordQueueDepth(queueName string, pending, delayed int)

	// RecordTaskRejected records that a post was refused.
	RecordTaskRejected(queueName string, reason string)

	// RecordTasksDropped records tasks released unexecuted at shutdown.
	RecordTasksDropped(queueName string, count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(queueName string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskLateness(queueName string, lateness time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(queueName string, pending, delayed int)     {}
func (m *NilMetrics) RecordTaskRejected(queueName string, reason string)          {}
func (m *NilMetrics) RecordTasksDropped(queueName string, count int)              {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a post is refused because the queue has
// been shut down. The task has already been released when this runs.
type RejectedTaskHandler interface {
	HandleRejectedTask(queueName string, reason string)
}

// LoggingRejectedTaskHandler logs rejected posts at warn level.
type LoggingRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *LoggingRejectedTaskHandler) HandleRejectedTask(queueName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("queue", queueName), F("reason", reason))
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds configuration options for a Scheduler.
// Every field is optional; zero values fall back to defaults.
type SchedulerConfig struct {
	// Logger receives lifecycle and warning logs. Defaults to NewDefaultLogger().
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to LoggingPanicHandler.
	PanicHandler PanicHandler

	// PanicPolicy decides whether the queue survives a task panic.
	PanicPolicy PanicPolicy

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called for posts after shutdown. Defaults to
	// LoggingRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Clock supplies "now" for deadlines. Defaults to timeutil.RealClock().
	Clock timeutil.Clock

	// ClockRecheck caps how long the worker sleeps in real time before it
	// reads Clock again, so a non-real clock that jumps forward is noticed.
	// Defaults to DefaultClockRecheck for any clock other than the real one
	// and to no cap for the real clock. Negative disables the cap.
	ClockRecheck time.Duration

	// LockOSThread pins the worker goroutine to one OS thread for its lifetime.
	LockOSThread bool

	// HistoryCapacity bounds the execution history ring buffer.
	HistoryCapacity int

	// LifecycleWarnAfter is how long create/shutdown handshakes wait before
	// logging a warning. Defaults to DefaultWarnAfter.
	LifecycleWarnAfter time.Duration
}

// DefaultClockRecheck is the sleep cap used with a non-real Clock.
const DefaultClockRecheck = 10 * time.Millisecond

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	logger := NewDefaultLogger()
	return &SchedulerConfig{
		Logger:              logger,
		PanicHandler:        &LoggingPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &LoggingRejectedTaskHandler{Logger: logger},
		Clock:               timeutil.RealClock(),
		HistoryCapacity:     defaultTaskHistoryCapacity,
		LifecycleWarnAfter:  DefaultWarnAfter,
	}
}

// withDefaults fills the unset fields of a copy of cfg.
func (cfg *SchedulerConfig) withDefaults() SchedulerConfig {
	out := SchedulerConfig{}
	if cfg != nil {
		out = *cfg
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &LoggingPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &LoggingRejectedTaskHandler{Logger: out.Logger}
	}
	if out.Clock == nil {
		out.Clock = timeutil.RealClock()
	}
	if out.ClockRecheck == 0 && out.Clock != timeutil.RealClock() {
		out.ClockRecheck = DefaultClockRecheck
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultTaskHistoryCapacity
	}
	if out.LifecycleWarnAfter <= 0 {
		out.LifecycleWarnAfter = DefaultWarnAfter
	}
	return out
}
