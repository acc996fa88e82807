package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-taskqueue/core"
)

type queueStub struct {
	stats core.QueueStats
}

func (s queueStub) Stats() core.QueueStats { return s.stats }

// TestSnapshotPoller_CollectsQueueStats verifies snapshots become gauges.
// Given: A poller with one registered queue provider
// When: The poller runs
// Then: Every gauge reflects the provider's snapshot
func TestSnapshotPoller_CollectsQueueStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("taskqueue", reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddQueue("worker1", queueStub{stats: core.QueueStats{
		Name:     "worker1",
		Pending:  3,
		Delayed:  2,
		Running:  true,
		Executed: 40,
		Closed:   true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(poller.queuePending.WithLabelValues("worker1")) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(poller.queueDelayed.WithLabelValues("worker1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueRunning.WithLabelValues("worker1")))
	assert.Equal(t, 40.0, testutil.ToFloat64(poller.queueExecuted.WithLabelValues("worker1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueClosed.WithLabelValues("worker1")))
}

func TestSnapshotPoller_RemoveQueueDeletesSeries(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("taskqueue", reg, time.Hour)
	require.NoError(t, err)

	poller.AddQueue("worker1", queueStub{stats: core.QueueStats{Pending: 1}})
	poller.collectOnce()
	require.Equal(t, 1, testutil.CollectAndCount(poller.queuePending))

	poller.RemoveQueue("worker1")
	assert.Equal(t, 0, testutil.CollectAndCount(poller.queuePending))
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("taskqueue", reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}
