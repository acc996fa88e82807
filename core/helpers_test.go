package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// newTestScheduler starts a quiet scheduler that is shut down with the test.
func newTestScheduler(t *testing.T, name string, mutate ...func(cfg *SchedulerConfig)) *Scheduler {
	t.Helper()
	cfg := &SchedulerConfig{Logger: NewNoOpLogger()}
	for _, m := range mutate {
		m(cfg)
	}
	s := NewScheduler(name, cfg)
	t.Cleanup(s.Shutdown)
	return s
}

// recorder collects values appended from tasks.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// blockQueue posts a task that holds the worker until the returned func is
// called, and waits until the worker is actually inside it.
func blockQueue(t *testing.T, s *Scheduler) (release func()) {
	t.Helper()
	entered := NewSignalEvent(true, false)
	gate := make(chan struct{})
	s.PostFunc(func(ctx context.Context) {
		entered.Signal()
		<-gate
	})
	if !entered.Wait(2 * time.Second) {
		t.Fatal("worker never entered the blocking task")
	}
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// recordingMetrics is a Metrics that keeps counts.
type recordingMetrics struct {
	mu        sync.Mutex
	durations int
	lateness  []time.Duration
	panics    int
	rejected  []string
	dropped   int
}

func (m *recordingMetrics) RecordTaskDuration(string, time.Duration) {
	m.mu.Lock()
	m.durations++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTaskLateness(_ string, d time.Duration) {
	m.mu.Lock()
	m.lateness = append(m.lateness, d)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTaskPanic(string, any) {
	m.mu.Lock()
	m.panics++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordQueueDepth(string, int, int) {}

func (m *recordingMetrics) RecordTaskRejected(_ string, reason string) {
	m.mu.Lock()
	m.rejected = append(m.rejected, reason)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTasksDropped(_ string, n int) {
	m.mu.Lock()
	m.dropped += n
	m.mu.Unlock()
}

func (m *recordingMetrics) snapshot() recordingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recordingMetrics{
		durations: m.durations,
		lateness:  append([]time.Duration(nil), m.lateness...),
		panics:    m.panics,
		rejected:  append([]string(nil), m.rejected...),
		dropped:   m.dropped,
	}
}
