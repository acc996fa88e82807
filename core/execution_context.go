package core

import (
	"context"
	"runtime"
	"sync"
)

// =============================================================================
// Execution context: which scheduler drives the calling goroutine
// =============================================================================

// currentByGoroutine maps goroutine ID -> *Scheduler for goroutines that are
// inside a scheduler's worker loop.
var currentByGoroutine sync.Map

// schedulerScope restores the previous registration on exit, so nested
// registrations on the same goroutine unwind correctly.
type schedulerScope struct {
	gid      uint64
	previous *Scheduler
}

func enterScheduler(s *Scheduler) schedulerScope {
	gid := getGoroutineID()
	scope := schedulerScope{gid: gid}
	if prev, ok := currentByGoroutine.Load(gid); ok {
		scope.previous = prev.(*Scheduler)
	}
	currentByGoroutine.Store(gid, s)
	return scope
}

func (sc schedulerScope) exit() {
	if sc.previous != nil {
		currentByGoroutine.Store(sc.gid, sc.previous)
		return
	}
	currentByGoroutine.Delete(sc.gid)
}

// CurrentScheduler returns the scheduler whose worker is running the calling
// goroutine, or nil.
func CurrentScheduler() *Scheduler {
	if v, ok := currentByGoroutine.Load(getGoroutineID()); ok {
		return v.(*Scheduler)
	}
	return nil
}

// getGoroutineID parses the current goroutine's ID from its stack header
// ("goroutine 123 [running]:").
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// =============================================================================
// Context Helper
// =============================================================================

type schedulerKeyType struct{}

var schedulerKey schedulerKeyType

// SchedulerFromContext returns the scheduler a task's context belongs to.
func SchedulerFromContext(ctx context.Context) *Scheduler {
	if v := ctx.Value(schedulerKey); v != nil {
		return v.(*Scheduler)
	}
	return nil
}

func withScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey, s)
}
