package core

import (
	"context"
	"sync"
	"time"
)

const (
	// Forever disables a wait bound.
	Forever time.Duration = -1

	// DefaultWarnAfter is the warn bound Wait uses for unbounded waits.
	DefaultWarnAfter = 3 * time.Second
)

// SignalEvent is a boolean wait/signal primitive with manual or auto reset.
//
// The condition variable is a broadcast channel guarded by mu: it is closed
// and replaced each time the event becomes signaled, which gives waiters a
// timed wait that sync.Cond cannot.
type SignalEvent struct {
	mu          sync.Mutex
	manualReset bool
	signaled    bool
	broadcast   chan struct{}
	onWarn      func(waited time.Duration)
}

// NewSignalEvent creates an event. An auto-reset event (manualReset false)
// is cleared by the one waiter that observes a signal.
func NewSignalEvent(manualReset, initiallySignaled bool) *SignalEvent {
	return &SignalEvent{
		manualReset: manualReset,
		signaled:    initiallySignaled,
		broadcast:   make(chan struct{}),
	}
}

// SetWarnHandler installs the callback invoked when a wait outlives its warn
// bound. The callback runs on the waiting goroutine without the event lock.
func (e *SignalEvent) SetWarnHandler(fn func(waited time.Duration)) {
	e.mu.Lock()
	e.onWarn = fn
	e.mu.Unlock()
}

// Signal sets the event and wakes every waiter.
func (e *SignalEvent) Signal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.signaled {
		// Every channel handed out while unsignaled has already been closed.
		return
	}
	e.signaled = true
	close(e.broadcast)
	e.broadcast = make(chan struct{})
}

// Clear resets the event. Waiters are not woken.
func (e *SignalEvent) Clear() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// Wait waits up to giveUpAfter. An unbounded wait warns after DefaultWarnAfter.
func (e *SignalEvent) Wait(giveUpAfter time.Duration) bool {
	if giveUpAfter == Forever {
		return e.WaitWithWarning(Forever, DefaultWarnAfter)
	}
	return e.WaitWithWarning(giveUpAfter, Forever)
}

// WaitWithWarning blocks until the event is signaled or giveUpAfter elapses.
// When warnAfter is finite and below giveUpAfter, the warn handler fires once
// warnAfter has passed and the wait then continues to the give-up bound. Either
// bound may be Forever. Returns true iff the event was signaled.
func (e *SignalEvent) WaitWithWarning(giveUpAfter, warnAfter time.Duration) bool {
	start := time.Now()

	warn := warnAfter >= 0 && (giveUpAfter < 0 || warnAfter < giveUpAfter)

	var giveUpAt time.Time
	if giveUpAfter >= 0 {
		giveUpAt = start.Add(giveUpAfter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var ok bool
	if warn {
		ok = e.waitLocked(nil, start.Add(warnAfter))
		if !ok {
			if fn := e.onWarn; fn != nil {
				e.mu.Unlock()
				fn(time.Since(start))
				e.mu.Lock()
			}
			ok = e.waitLocked(nil, giveUpAt)
		}
	} else {
		ok = e.waitLocked(nil, giveUpAt)
	}

	if ok && !e.manualReset {
		e.signaled = false
	}
	return ok
}

// WaitContext blocks until the event is signaled or ctx is done.
func (e *SignalEvent) WaitContext(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.waitLocked(ctx.Done(), time.Time{}) {
		return ctx.Err()
	}
	if !e.manualReset {
		e.signaled = false
	}
	return nil
}

// waitLocked waits with e.mu held until signaled, done is closed, or the
// deadline passes. A zero deadline means no deadline.
func (e *SignalEvent) waitLocked(done <-chan struct{}, deadline time.Time) bool {
	for !e.signaled {
		ch := e.broadcast

		var timeout <-chan time.Time
		var timer *time.Timer
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false
			}
			timer = time.NewTimer(remaining)
			timeout = timer.C
		}

		e.mu.Unlock()
		cancelled := false
		select {
		case <-ch:
		case <-timeout:
		case <-done:
			cancelled = true
		}
		if timer != nil {
			timer.Stop()
		}
		e.mu.Lock()

		if cancelled && !e.signaled {
			return false
		}
	}
	return true
}
