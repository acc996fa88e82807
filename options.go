package taskqueue

import (
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/Swind/go-taskqueue/core"
)

// Option customizes the scheduler behind a TaskQueue.
type Option func(cfg *core.SchedulerConfig)

// WithLogger sets the logger used for lifecycle, panic and rejection logs.
func WithLogger(logger core.Logger) Option {
	return func(cfg *core.SchedulerConfig) { cfg.Logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics core.Metrics) Option {
	return func(cfg *core.SchedulerConfig) { cfg.Metrics = metrics }
}

// WithPanicHandler sets the handler called when a task panics.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(cfg *core.SchedulerConfig) { cfg.PanicHandler = h }
}

// WithPanicPolicy decides whether a panicking task takes the process down.
func WithPanicPolicy(p core.PanicPolicy) Option {
	return func(cfg *core.SchedulerConfig) { cfg.PanicPolicy = p }
}

// WithRejectedTaskHandler sets the handler for posts after shutdown.
func WithRejectedTaskHandler(h core.RejectedTaskHandler) Option {
	return func(cfg *core.SchedulerConfig) { cfg.RejectedTaskHandler = h }
}

// WithClock sets the clock deadlines are computed against.
func WithClock(clock timeutil.Clock) Option {
	return func(cfg *core.SchedulerConfig) { cfg.Clock = clock }
}

// WithClockRecheck caps the worker's real sleep so a non-real clock that
// jumps forward is noticed. Negative disables the cap.
func WithClockRecheck(d time.Duration) Option {
	return func(cfg *core.SchedulerConfig) { cfg.ClockRecheck = d }
}

// WithLockOSThread pins the worker goroutine to a single OS thread.
func WithLockOSThread(lock bool) Option {
	return func(cfg *core.SchedulerConfig) { cfg.LockOSThread = lock }
}

// WithHistoryCapacity bounds the per-queue execution history.
func WithHistoryCapacity(n int) Option {
	return func(cfg *core.SchedulerConfig) { cfg.HistoryCapacity = n }
}

func buildConfig(opts []Option) *core.SchedulerConfig {
	cfg := &core.SchedulerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}
