package store

import (
	"sync"

	"github.com/keeldb/keel/internal/analytics"
	"github.com/keeldb/keel/internal/archive"
	"github.com/keeldb/keel/internal/sinks"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/internal/workqueue"
)

// Targets caches a tenant's durable sink endpoints so every writer and
// reader of an archive log or queue shares one instance, keeping sequence
// assignment behind a single mutex.
type Targets struct {
	db     *pebblestore.DB
	tenant string

	mu      sync.Mutex
	logs    map[string]*archive.Log
	queues  map[string]*workqueue.Queue
	metrics *analytics.Store
}

// NewTargets creates the endpoint cache for a tenant.
func NewTargets(db *pebblestore.DB, tenant string) *Targets {
	return &Targets{
		db:     db,
		tenant: tenant,
		logs:   make(map[string]*archive.Log),
		queues: make(map[string]*workqueue.Queue),
	}
}

// ArchiveLog returns the named archive log, opening it on first use.
func (t *Targets) ArchiveLog(name string) (*archive.Log, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.logs[name]; ok {
		return l, nil
	}
	l, err := archive.Open(t.db, t.tenant, name)
	if err != nil {
		return nil, err
	}
	t.logs[name] = l
	return l, nil
}

// Queue returns the named work queue, opening it on first use.
func (t *Targets) Queue(name string) (*workqueue.Queue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[name]; ok {
		return q, nil
	}
	q, err := workqueue.Open(t.db, t.tenant, name)
	if err != nil {
		return nil, err
	}
	t.queues[name] = q
	return q, nil
}

// Analytics returns the tenant's analytics store.
func (t *Targets) Analytics() *analytics.Store {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.metrics == nil {
		t.metrics = analytics.New(t.db, t.tenant)
	}
	return t.metrics
}

// sinkTargets adapts the cache to the sink builder's interface.
func (t *Targets) sinkTargets() sinks.Targets { return sinkTargets{t} }

type sinkTargets struct{ t *Targets }

func (a sinkTargets) ArchiveLog(name string) (sinks.ArchiveLog, error) {
	return a.t.ArchiveLog(name)
}

func (a sinkTargets) Queue(name string) (sinks.Queue, error) {
	return a.t.Queue(name)
}

func (a sinkTargets) Analytics() sinks.Analytics {
	return a.t.Analytics()
}
