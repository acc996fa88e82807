package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWatcher_ReloadsOnWrite verifies hot reload
// Given: A watcher on a config file
// When: The file is rewritten with an invalid and then a valid document
// Then: Only the valid document reaches the callback
func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: a\n"), 0o644))

	got := make(chan *Config, 4)
	w := NewWatcher(path, nil, func(c *Config) { got <- c })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: \n"), 0o644))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: a\n  - name: b\n"), 0o644))

	select {
	case c := <-got:
		assert.Equal(t, []string{"a", "b"}, c.QueueNames())
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

// TestWatcher_ReloadsAreSerialized verifies callbacks never overlap and stop
// with Run
// Given: A slow onChange callback and a short debounce
// When: The file changes faster than the callback finishes, then Run is cancelled
// Then: At most one callback runs at a time and none runs after Run returns
func TestWatcher_ReloadsAreSerialized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: a\n"), 0o644))

	var inFlight, maxInFlight, calls atomic.Int32
	w := NewWatcher(path, nil, func(*Config) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		calls.Add(1)
		time.Sleep(40 * time.Millisecond)
		inFlight.Add(-1)
	})
	w.debounce = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for range 8 {
		require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: a\n"), 0o644))
		time.Sleep(15 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("queues:\n  - name: a\n"), 0o644))
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	after := calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "callback ran after Run returned")
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int32(0), inFlight.Load())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope", "cfg.yaml"), nil, func(*Config) {})
	assert.Error(t, w.Run(context.Background()))
}
