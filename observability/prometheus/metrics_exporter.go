package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-taskqueue/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	LatenessBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskLatenessSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	taskDroppedTotal    *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	durationBuckets := opts.DurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = prom.DefBuckets
	}
	latenessBuckets := opts.LatenessBuckets
	if len(latenessBuckets) == 0 {
		latenessBuckets = prom.ExponentialBuckets(0.0005, 4, 8)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   durationBuckets,
	}, []string{"queue"})
	latenessVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_lateness_seconds",
		Help:      "Time between a delayed task's deadline and its start.",
		Buckets:   latenessBuckets,
	}, []string{"queue"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"queue"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected posts.",
	}, []string{"queue", "reason"})
	droppedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_dropped_total",
		Help:      "Tasks released without running at shutdown.",
	}, []string{"queue"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of stored tasks.",
	}, []string{"queue", "store"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if latenessVec, err = registerCollector(reg, latenessVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if droppedVec, err = registerCollector(reg, droppedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskLatenessSeconds: latenessVec,
		taskPanicTotal:      panicVec,
		taskRejectedTotal:   rejectedVec,
		taskDroppedTotal:    droppedVec,
		queueDepth:          queueDepthVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(queueName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskLateness records how late a delayed task started.
func (m *MetricsExporter) RecordTaskLateness(queueName string, lateness time.Duration) {
	if m == nil {
		return
	}
	if lateness < 0 {
		lateness = 0
	}
	m.taskLatenessSeconds.WithLabelValues(normalizeLabel(queueName, "unknown")).Observe(lateness.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(queueName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordQueueDepth records both store sizes.
func (m *MetricsExporter) RecordQueueDepth(queueName string, pending, delayed int) {
	if m == nil {
		return
	}
	name := normalizeLabel(queueName, "unknown")
	m.queueDepth.WithLabelValues(name, "pending").Set(float64(pending))
	m.queueDepth.WithLabelValues(name, "delayed").Set(float64(delayed))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(queueName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTasksDropped records tasks discarded at shutdown.
func (m *MetricsExporter) RecordTasksDropped(queueName string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.taskDroppedTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Add(float64(count))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
