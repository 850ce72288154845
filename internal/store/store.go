// Package store implements the per-tenant document store: schema-aware CRUD
// with soft deletes, relation expansion, filtered queries, substring search,
// and the change-data-capture pipeline (event buffer, live subscriptions,
// sink dispatch, checkpointing).
//
// One Store exists per tenant. All operations serialize behind a single
// mutex; a mutation assigns its event sequence and pushes to live
// subscribers before returning, then kicks the checkpoint writer and the
// sink dispatcher in the background.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keeldb/keel/internal/changelog"
	"github.com/keeldb/keel/internal/document"
	"github.com/keeldb/keel/internal/hub"
	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/schema"
	"github.com/keeldb/keel/internal/sinks"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/pkg/log"
)

// ErrNotFound reports a mutation against a missing or soft-deleted document.
var ErrNotFound = errors.New("not found")

func notFound(model, id string) error {
	return fmt.Errorf("%s %s: %w", model, id, ErrNotFound)
}

// State is the store lifecycle phase. The machine is one-way:
// Uninitialized -> Initializing -> Ready -> Closed.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Actor identifies the caller of a mutation for audit fields and events.
type Actor struct {
	UserID    string
	RequestID string
}

// Options configures a Store.
type Options struct {
	Tenant string

	// BufferCapacity bounds the in-memory event buffer. Default 10000.
	BufferCapacity int

	// CheckpointInterval is the safety-net flush period. Default 30s.
	CheckpointInterval time.Duration

	// WebhookTimeout bounds each webhook sink post. Default 5s.
	WebhookTimeout time.Duration

	Logger log.Logger

	// Clock returns the current time in Unix milliseconds. Tests override it.
	Clock func() int64

	// NewID mints document and event ids. Tests override it.
	NewID func() string
}

func (o *Options) applyDefaults() {
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = changelog.DefaultCapacity
	}
	if o.CheckpointInterval <= 0 {
		o.CheckpointInterval = 30 * time.Second
	}
	if o.WebhookTimeout <= 0 {
		o.WebhookTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.NewLogger()
	}
	if o.Clock == nil {
		o.Clock = func() int64 { return time.Now().UnixMilli() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// Store is one tenant's document store.
type Store struct {
	tenant  string
	db      *pebblestore.DB
	logger  log.Logger
	clock   func() int64
	newID   func() string
	webhook *http.Client

	hub        *hub.Hub
	dispatcher *sinks.Dispatcher
	targets    *Targets

	mu          sync.Mutex
	state       State
	schema      *schema.Schema
	collections map[string]*document.Collection
	log         *changelog.Log
	sinkConfigs []sinks.Config
	dirty       bool
	gen         uint64

	interval time.Duration
	ckptKick chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// Open hydrates the tenant's persisted state and returns a ready store with
// its checkpoint loop and sink dispatcher running. Hydration completes
// before any request is served.
func Open(db *pebblestore.DB, opts Options) (*Store, error) {
	opts.applyDefaults()
	if opts.Tenant == "" {
		return nil, fmt.Errorf("store: tenant is required")
	}

	logger := opts.Logger.WithComponent("store").With(log.Str("tenant", opts.Tenant))
	s := &Store{
		tenant:      opts.Tenant,
		db:          db,
		logger:      logger,
		clock:       opts.Clock,
		newID:       opts.NewID,
		webhook:     &http.Client{Timeout: opts.WebhookTimeout},
		hub:         hub.New(opts.Logger.With(log.Str("tenant", opts.Tenant))),
		targets:     NewTargets(db, opts.Tenant),
		state:       StateInitializing,
		schema:      schema.Empty(),
		collections: make(map[string]*document.Collection),
		interval:    opts.CheckpointInterval,
		ckptKick:    make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := s.hydrate(opts.BufferCapacity); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", opts.Tenant, err)
	}

	s.dispatcher = sinks.NewDispatcher(logger, eventSource{s}, s.log.LastSequence())
	built, errs := sinks.BuildAll(s.sinkConfigs, s.targets.sinkTargets(), s.webhook)
	for _, err := range errs {
		logger.Warn("sink disabled", log.Err(err))
	}
	s.dispatcher.SetSinks(built)

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()

	s.dispatcher.Start()
	go s.checkpointLoop()

	logger.Info("store ready",
		log.Uint64("sequence", s.log.LastSequence()),
		log.Int("models", len(s.collections)),
		log.Int("sinks", len(built)))
	return s, nil
}

// Tenant returns the tenant this store serves.
func (s *Store) Tenant() string { return s.tenant }

// State returns the lifecycle phase.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Hub returns the live subscription hub for this store.
func (s *Store) Hub() *hub.Hub { return s.hub }

// SinkTargets returns the tenant's durable sink endpoints, shared so HTTP
// consumption and sink writes use the same instances.
func (s *Store) SinkTargets() *Targets { return s.targets }

// LastSequence returns the most recently assigned event sequence.
func (s *Store) LastSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.LastSequence()
}

// Create inserts a document. An id supplied in data is honored, otherwise
// one is minted; a duplicate supplied id silently overwrites the existing
// document and keeps its collection position.
func (s *Store) Create(ctx context.Context, model string, data *jsonval.Object, actor Actor) (*document.Document, error) {
	id := ""
	if data != nil {
		if v, ok := data.Get("id"); ok {
			id = jsonval.StringForm(v)
		}
	}
	if id == "" {
		id = s.newID()
	}
	fields := document.StripReserved(data)

	s.mu.Lock()
	now := s.clock()
	doc := document.New(id, fields, now, actor.UserID)
	s.collection(model).Put(doc)
	s.emitLocked(changelog.OpCreate, model, id, nil, doc.Clone(), actor, now)
	out := doc.Clone()
	s.mu.Unlock()

	s.afterMutation()
	return out, nil
}

// Get returns the document, or nil when missing or soft-deleted. Include
// names relation fields to expand one level; expansion happens on a clone.
func (s *Store) Get(ctx context.Context, model, id string, opts GetOptions) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.liveLocked(model, id)
	if doc == nil {
		return nil, nil
	}
	out := doc.Clone()
	if len(opts.Include) > 0 {
		s.expandLocked(model, out, opts.Include)
	}
	return out, nil
}

// Update shallow-merges data over the existing fields. Fails with
// ErrNotFound when the document is missing or soft-deleted.
func (s *Store) Update(ctx context.Context, model, id string, data *jsonval.Object, actor Actor) (*document.Document, error) {
	payload := document.StripReserved(data)

	s.mu.Lock()
	doc := s.liveLocked(model, id)
	if doc == nil {
		s.mu.Unlock()
		return nil, notFound(model, id)
	}
	now := s.clock()
	before := doc.Clone()
	payload.Range(func(k string, v jsonval.Value) bool {
		doc.Fields.Set(k, v.Clone())
		return true
	})
	doc.Version++
	doc.UpdatedAt = now
	doc.UpdatedBy = actor.UserID
	s.emitLocked(changelog.OpUpdate, model, id, before, doc.Clone(), actor, now)
	out := doc.Clone()
	s.mu.Unlock()

	s.afterMutation()
	return out, nil
}

// Delete soft-deletes the document. Missing or already-deleted ids are a
// silent no-op: no error, no event, no version bump.
func (s *Store) Delete(ctx context.Context, model, id string, actor Actor) error {
	s.mu.Lock()
	doc := s.liveLocked(model, id)
	if doc == nil {
		s.mu.Unlock()
		return nil
	}
	now := s.clock()
	before := doc.Clone()
	doc.Version++
	doc.DeletedAt = now
	doc.DeletedBy = actor.UserID
	s.emitLocked(changelog.OpDelete, model, id, before, nil, actor, now)
	s.mu.Unlock()

	s.afterMutation()
	return nil
}

// SetSchema replaces the active schema.
func (s *Store) SetSchema(ctx context.Context, sch *schema.Schema) error {
	if sch == nil {
		sch = schema.Empty()
	}
	s.mu.Lock()
	s.schema = sch
	s.markDirtyLocked()
	s.mu.Unlock()

	s.kickCheckpoint()
	return nil
}

// Schema returns the active schema.
func (s *Store) Schema() *schema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// ConfigureSinks replaces the sink configuration, persists it, and applies
// it to the dispatcher. Sinks that fail to build are logged and disabled;
// the rest still apply.
func (s *Store) ConfigureSinks(ctx context.Context, configs []sinks.Config) error {
	s.mu.Lock()
	s.sinkConfigs = configs
	s.markDirtyLocked()
	s.mu.Unlock()

	if err := s.db.SetJSON(keySinks(s.tenant), configs); err != nil {
		return fmt.Errorf("persist sinks: %w", err)
	}
	built, errs := sinks.BuildAll(configs, s.targets.sinkTargets(), s.webhook)
	for _, err := range errs {
		s.logger.Warn("sink disabled", log.Err(err))
	}
	s.dispatcher.SetSinks(built)
	s.kickCheckpoint()
	return nil
}

// SinkConfigs returns the active sink configuration.
func (s *Store) SinkConfigs() []sinks.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sinks.Config, len(s.sinkConfigs))
	copy(out, s.sinkConfigs)
	return out
}

// FlushSinks synchronously delivers buffered events to the configured
// sinks, bypassing the background kick.
func (s *Store) FlushSinks(ctx context.Context) {
	s.dispatcher.Flush(ctx)
}

// Events returns buffered events with sequence > since, optionally filtered
// by model, capped at limit, plus the latest assigned sequence. Evicted
// ranges are silently absent.
func (s *Store) Events(since uint64, limit int, model string) ([]*changelog.Event, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Since(since, limit, model), s.log.LastSequence()
}

// Close checkpoints outstanding state, drains the sink dispatcher, and
// stops background work. Safe to call once.
func (s *Store) Close(ctx context.Context) error {
	if !s.shutdown() {
		return nil
	}
	s.dispatcher.Stop()
	return s.checkpoint(ctx)
}

// Discard stops the store without a final checkpoint; mutations since the
// last checkpoint are lost. This is the eviction path.
func (s *Store) Discard() {
	if !s.shutdown() {
		return
	}
	s.dispatcher.Stop()
}

func (s *Store) shutdown() bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	s.mu.Unlock()
	close(s.stop)
	<-s.done
	return true
}

// collection returns the model's collection, creating it on first use.
func (s *Store) collection(model string) *document.Collection {
	c, ok := s.collections[model]
	if !ok {
		c = document.NewCollection()
		s.collections[model] = c
	}
	return c
}

func (s *Store) liveLocked(model, id string) *document.Document {
	c, ok := s.collections[model]
	if !ok {
		return nil
	}
	doc, ok := c.Get(id)
	if !ok || doc.Deleted() {
		return nil
	}
	return doc
}

// emitLocked assigns the event its sequence, buffers it, and pushes it to
// live subscribers, all inside the mutating call.
func (s *Store) emitLocked(op changelog.Op, model, id string, before, after *document.Document, actor Actor, now int64) {
	e := &changelog.Event{
		ID:         s.newID(),
		Timestamp:  now,
		Operation:  op,
		Model:      model,
		DocumentID: id,
		Before:     before,
		After:      after,
		UserID:     actor.UserID,
		RequestID:  actor.RequestID,
	}
	s.log.Append(e)
	s.markDirtyLocked()
	s.hub.Broadcast(e)
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	s.gen++
}

func (s *Store) afterMutation() {
	s.kickCheckpoint()
	s.dispatcher.Kick()
}

func (s *Store) kickCheckpoint() {
	select {
	case s.ckptKick <- struct{}{}:
	default:
	}
}

// eventSource adapts the store's buffer for the sink dispatcher.
type eventSource struct{ s *Store }

func (es eventSource) Since(since uint64, limit int, model string) []*changelog.Event {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()
	return es.s.log.Since(since, limit, model)
}
