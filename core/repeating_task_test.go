package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRepeatingTask_BasicExecution verifies basic repeating task functionality
// Given: A repeating task every 20ms
// When: It runs for a while and is then stopped
// Then: It ran several times and no more after Stop
func TestRepeatingTask_BasicExecution(t *testing.T) {
	s := newTestScheduler(t, "repeat")

	var counter atomic.Int32
	handle := s.PostRepeatingTask(func(ctx context.Context) {
		counter.Add(1)
	}, 20*time.Millisecond)

	require.Eventually(t, func() bool { return counter.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	handle.Stop()
	assert.True(t, handle.IsStopped())

	// let a run that was already due finish
	time.Sleep(30 * time.Millisecond)
	final := counter.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, final, counter.Load())
}

// TestRepeatingTask_WithInitialDelay verifies the first run is deferred
func TestRepeatingTask_WithInitialDelay(t *testing.T) {
	s := newTestScheduler(t, "repeat-delay")

	start := time.Now()
	first := make(chan time.Duration, 1)
	var runs atomic.Int32
	handle := s.PostRepeatingTaskWithInitialDelay(func(ctx context.Context) {
		if runs.Add(1) == 1 {
			first <- time.Since(start)
		}
	}, 50*time.Millisecond, 10*time.Millisecond)
	defer handle.Stop()

	select {
	case d := <-first:
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("repeating task never ran")
	}
}

func TestRepeatingTask_StopFromInside(t *testing.T) {
	s := newTestScheduler(t, "repeat-self-stop")

	var counter atomic.Int32
	var handle RepeatingTaskHandle
	ready := make(chan struct{})
	handle = s.PostRepeatingTaskWithInitialDelay(func(ctx context.Context) {
		<-ready
		if counter.Add(1) == 3 {
			handle.Stop()
		}
	}, time.Millisecond, 5*time.Millisecond)
	close(ready)

	require.Eventually(t, handle.IsStopped, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), counter.Load())
}

func TestRepeatingTask_EndsWithShutdown(t *testing.T) {
	s := NewScheduler("repeat-shutdown", &SchedulerConfig{Logger: NewNoOpLogger()})

	var counter atomic.Int32
	s.PostRepeatingTask(func(ctx context.Context) { counter.Add(1) }, 5*time.Millisecond)
	require.Eventually(t, func() bool { return counter.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Shutdown()
	after := counter.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, counter.Load())
}
