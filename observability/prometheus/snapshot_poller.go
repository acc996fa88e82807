package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-taskqueue/core"
)

// QueueSnapshotProvider provides current queue stats snapshots.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

// SnapshotPoller periodically exports queue Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	queuePending  *prom.GaugeVec
	queueDelayed  *prom.GaugeVec
	queueRunning  *prom.GaugeVec
	queueExecuted *prom.GaugeVec
	queueClosed   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "taskqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"queue"})
	}
	queuePending := gauge("queue_pending", "Pending tasks per queue.")
	queueDelayed := gauge("queue_delayed", "Delayed tasks per queue.")
	queueRunning := gauge("queue_running", "Whether the queue is executing a task (1=yes, 0=no).")
	queueExecuted := gauge("queue_executed", "Executed task count snapshot.")
	queueClosed := gauge("queue_closed", "Queue closed state (1=closed, 0=open).")

	var err error
	if queuePending, err = registerCollector(reg, queuePending); err != nil {
		return nil, err
	}
	if queueDelayed, err = registerCollector(reg, queueDelayed); err != nil {
		return nil, err
	}
	if queueRunning, err = registerCollector(reg, queueRunning); err != nil {
		return nil, err
	}
	if queueExecuted, err = registerCollector(reg, queueExecuted); err != nil {
		return nil, err
	}
	if queueClosed, err = registerCollector(reg, queueClosed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		queues:        make(map[string]QueueSnapshotProvider),
		queuePending:  queuePending,
		queueDelayed:  queueDelayed,
		queueRunning:  queueRunning,
		queueExecuted: queueExecuted,
		queueClosed:   queueClosed,
	}, nil
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
}

// RemoveQueue stops exporting name and deletes its series.
func (p *SnapshotPoller) RemoveQueue(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	delete(p.queues, name)
	p.queuesMu.Unlock()

	for _, vec := range []*prom.GaugeVec{p.queuePending, p.queueDelayed, p.queueRunning, p.queueExecuted, p.queueClosed} {
		vec.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.queuesMu.RLock()
	defer p.queuesMu.RUnlock()

	for name, provider := range p.queues {
		stats := provider.Stats()
		p.queuePending.WithLabelValues(name).Set(float64(stats.Pending))
		p.queueDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.queueRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.queueExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.queueClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
