package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSignalEvent_AutoResetWakesOneWaiter verifies auto-reset semantics
// Given: An auto-reset event with two waiters blocked on it
// When: Signal is called once
// Then: Exactly one waiter observes the signal and the other times out
func TestSignalEvent_AutoResetWakesOneWaiter(t *testing.T) {
	e := NewSignalEvent(false, false)

	var woke atomic.Int32
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.Wait(300 * time.Millisecond) {
				woke.Add(1)
			}
		}()
	}

	time.Sleep(30 * time.Millisecond)
	e.Signal()
	wg.Wait()

	assert.Equal(t, int32(1), woke.Load())
	assert.False(t, e.Wait(0), "event must be cleared by the waiter that observed it")
}

// TestSignalEvent_ManualResetStaysSignaled verifies manual-reset semantics
// Given: A manual-reset event with several waiters
// When: Signal is called once
// Then: Every waiter wakes and the event stays signaled until Clear
func TestSignalEvent_ManualResetStaysSignaled(t *testing.T) {
	e := NewSignalEvent(true, false)

	var woke atomic.Int32
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.Wait(time.Second) {
				woke.Add(1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	e.Signal()
	wg.Wait()

	assert.Equal(t, int32(3), woke.Load())
	assert.True(t, e.Wait(0))

	e.Clear()
	assert.False(t, e.Wait(0))
}

func TestSignalEvent_InitiallySignaled(t *testing.T) {
	e := NewSignalEvent(false, true)
	assert.True(t, e.Wait(0))
	assert.False(t, e.Wait(0))
}

func TestSignalEvent_SignalIsIdempotent(t *testing.T) {
	e := NewSignalEvent(false, false)
	e.Signal()
	e.Signal()
	assert.True(t, e.Wait(0))
	assert.False(t, e.Wait(0), "two signals without a wait must not queue up")
}

// TestSignalEvent_WarnBeforeGiveUp verifies the two-phase wait
// Given: An unsignaled event, give-up 100ms and warn 50ms
// When: WaitWithWarning runs to completion
// Then: The warn handler fires once and the wait gives up no earlier than 100ms
func TestSignalEvent_WarnBeforeGiveUp(t *testing.T) {
	e := NewSignalEvent(false, false)
	var warnings atomic.Int32
	var warnedAt atomic.Int64
	e.SetWarnHandler(func(waited time.Duration) {
		warnings.Add(1)
		warnedAt.Store(int64(waited))
	})

	start := time.Now()
	ok := e.WaitWithWarning(100*time.Millisecond, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Equal(t, int32(1), warnings.Load())
	assert.GreaterOrEqual(t, time.Duration(warnedAt.Load()), 50*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

// TestSignalEvent_WarnAfterGiveUpNeverFires verifies a warn bound past the
// give-up bound is ignored
// Given: give-up 100ms and warn 200ms
// When: The wait times out
// Then: No warning is produced
func TestSignalEvent_WarnAfterGiveUpNeverFires(t *testing.T) {
	e := NewSignalEvent(false, false)
	var warnings atomic.Int32
	e.SetWarnHandler(func(time.Duration) { warnings.Add(1) })

	assert.False(t, e.WaitWithWarning(100*time.Millisecond, 200*time.Millisecond))
	assert.Equal(t, int32(0), warnings.Load())
}

func TestSignalEvent_SignalDuringWarnPhaseSucceeds(t *testing.T) {
	e := NewSignalEvent(false, false)
	warned := make(chan struct{})
	e.SetWarnHandler(func(time.Duration) { close(warned) })

	go func() {
		<-warned
		e.Signal()
	}()

	assert.True(t, e.WaitWithWarning(Forever, 20*time.Millisecond))
}

func TestSignalEvent_WaitContext(t *testing.T) {
	t.Run("signaled", func(t *testing.T) {
		e := NewSignalEvent(false, false)
		go func() {
			time.Sleep(10 * time.Millisecond)
			e.Signal()
		}()
		require.NoError(t, e.WaitContext(context.Background()))
	})

	t.Run("cancelled", func(t *testing.T) {
		e := NewSignalEvent(false, false)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, e.WaitContext(ctx), context.DeadlineExceeded)
	})
}
