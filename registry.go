package taskqueue

import (
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/Swind/go-taskqueue/config"
	"github.com/Swind/go-taskqueue/core"
)

// Registry owns a set of named queues.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*TaskQueue
	opts   []Option
}

// NewRegistry creates an empty registry. opts apply to every queue it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		queues: make(map[string]*TaskQueue),
		opts:   opts,
	}
}

// CreateMany creates a queue for each name that does not exist yet.
func (r *Registry) CreateMany(names ...string) {
	for _, name := range names {
		r.create(name, nil)
	}
}

func (r *Registry) create(name string, extra []Option) *TaskQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[name]; ok {
		return q
	}
	opts := make([]Option, 0, len(r.opts)+len(extra))
	opts = append(opts, r.opts...)
	opts = append(opts, extra...)
	q := Create(name, opts...)
	r.queues[name] = q
	return q
}

// Lookup returns the queue registered under name.
func (r *Registry) Lookup(name string) (*TaskQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	return q, ok
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedNamesLocked()
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route picks a queue for key. The same key maps to the same queue as long as
// the set of names does not change, so work for one key stays ordered.
func (r *Registry) Route(key string) (*TaskQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queues) == 0 {
		return nil, false
	}
	names := r.sortedNamesLocked()
	idx := murmur3.Sum32([]byte(key)) % uint32(len(names))
	return r.queues[names[idx]], true
}

// Apply reconciles the registry with cfg. Missing queues are created with
// their per-queue settings, and queues not in cfg are closed. Settings of a
// queue that already runs are left untouched.
func (r *Registry) Apply(cfg *config.Config) (added, removed []string) {
	if cfg == nil {
		return nil, nil
	}
	want := make(map[string]struct{}, len(cfg.Queues))
	for _, qc := range cfg.Queues {
		want[qc.Name] = struct{}{}
		if r.Exists(qc.Name) {
			continue
		}
		r.create(qc.Name, queueOptions(qc))
		added = append(added, qc.Name)
	}

	var stale []*TaskQueue
	r.mu.Lock()
	for name, q := range r.queues {
		if _, ok := want[name]; !ok {
			stale = append(stale, q)
			removed = append(removed, name)
			delete(r.queues, name)
		}
	}
	r.mu.Unlock()

	for _, q := range stale {
		q.Close()
	}
	sort.Strings(removed)
	return added, removed
}

func queueOptions(qc config.QueueConfig) []Option {
	var opts []Option
	if qc.LockOSThread {
		opts = append(opts, WithLockOSThread(true))
	}
	if qc.HistoryCapacity > 0 {
		opts = append(opts, WithHistoryCapacity(qc.HistoryCapacity))
	}
	if qc.CrashOnPanic {
		opts = append(opts, WithPanicPolicy(core.PanicPolicyCrash))
	}
	return opts
}

// Stats returns a snapshot of every queue, sorted by name.
func (r *Registry) Stats() []QueueStats {
	r.mu.Lock()
	names := r.sortedNamesLocked()
	queues := make([]*TaskQueue, len(names))
	for i, name := range names {
		queues[i] = r.queues[name]
	}
	r.mu.Unlock()

	stats := make([]QueueStats, len(queues))
	for i, q := range queues {
		stats[i] = q.Stats()
	}
	return stats
}

// Close shuts every queue down and empties the registry. Queues are closed
// outside the lock so their tasks may still call into the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	queues := r.queues
	r.queues = make(map[string]*TaskQueue)
	r.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

// =============================================================================
// Default Registry (Singleton)
// =============================================================================

var (
	defaultRegistry *Registry
	globalMu        sync.Mutex
)

// DefaultRegistry returns the process-wide registry, creating it on first use.
func DefaultRegistry() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// ShutdownDefaultRegistry closes every queue of the default registry. A later
// DefaultRegistry call starts a fresh one.
func ShutdownDefaultRegistry() {
	globalMu.Lock()
	r := defaultRegistry
	defaultRegistry = nil
	globalMu.Unlock()

	if r != nil {
		r.Close()
	}
}
