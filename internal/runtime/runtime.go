package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cfgpkg "github.com/keeldb/keel/internal/config"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/internal/store"
	"github.com/keeldb/keel/internal/tenant"
	"github.com/keeldb/keel/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
}

// Runtime wires storage, config, and the per-tenant store registry for a
// single-node instance. Stores hydrate lazily on first access and stay
// resident until evicted or the runtime closes.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger

	mu     sync.Mutex
	stores map[string]*store.Store
	closed bool
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		db:     db,
		config: opts.Config,
		logger: opts.Logger.WithComponent("runtime"),
		stores: make(map[string]*store.Store),
	}
	return rt, nil
}

// Store resolves a tenant name to its document store, hydrating it on first
// access. An empty name selects the configured default tenant. Unknown
// tenants are created implicitly unless auto-creation is disabled.
func (r *Runtime) Store(name string) (*store.Store, error) {
	if name == "" {
		name = r.config.DefaultTenant
	}
	if err := tenant.ValidateName(name, r.config.TenantNameRegex); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("runtime closed")
	}
	if s, ok := r.stores[name]; ok {
		return s, nil
	}

	if !r.config.AllowAutoCreate && name != r.config.DefaultTenant {
		known, err := tenant.Exists(r.db, name)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("unknown tenant %q", name)
		}
	}
	if _, err := tenant.Ensure(r.db, name); err != nil {
		return nil, err
	}

	s, err := store.Open(r.db, store.Options{
		Tenant:             name,
		BufferCapacity:     r.config.EventBufferSize,
		CheckpointInterval: time.Duration(r.config.CheckpointIntervalMs) * time.Millisecond,
		WebhookTimeout:     time.Duration(r.config.WebhookTimeoutMs) * time.Millisecond,
		Logger:             r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.stores[name] = s
	return s, nil
}

// Evict tears down a resident tenant store without checkpointing. State
// since the last checkpoint is discarded; the next access re-hydrates from
// disk. No-op for tenants that are not resident.
func (r *Runtime) Evict(name string) {
	r.mu.Lock()
	s, ok := r.stores[name]
	delete(r.stores, name)
	r.mu.Unlock()
	if ok {
		s.Discard()
		r.logger.Info("tenant evicted", log.Str("tenant", name))
	}
}

// Tenants returns metadata for every known tenant, sorted by name.
func (r *Runtime) Tenants() ([]tenant.Meta, error) {
	return tenant.List(r.db)
}

// EnsureTenant creates a tenant record if absent without hydrating a store.
func (r *Runtime) EnsureTenant(name string) (tenant.Meta, error) {
	if name == "" {
		name = r.config.DefaultTenant
	}
	if err := tenant.ValidateName(name, r.config.TenantNameRegex); err != nil {
		return tenant.Meta{}, err
	}
	return tenant.Ensure(r.db, name)
}

// Close checkpoints and shuts down every resident store, then closes the
// underlying storage.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stores := make([]*store.Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.stores = nil
	r.mu.Unlock()

	var firstErr error
	for _, s := range stores {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
