package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/keeldb/keel/internal/changelog"
	"github.com/keeldb/keel/pkg/log"
)

// EventSource yields buffered events past a sequence cursor. Implementations
// must be safe for concurrent use.
type EventSource interface {
	Since(since uint64, limit int, model string) []*changelog.Event
}

const defaultBatch = 256

// Dispatcher drains a store's event buffer in the background and fans each
// event out to the configured sinks. Mutations signal it with Kick after
// they commit; delivery never blocks or fails a write.
type Dispatcher struct {
	logger log.Logger
	source EventSource
	batch  int

	mu     sync.Mutex
	sinks  []Sink
	cursor uint64

	// drainMu serializes drains so Flush and the loop never interleave.
	drainMu sync.Mutex

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewDispatcher creates a dispatcher that resumes delivery after the given
// sequence. Call Start to launch the delivery loop.
func NewDispatcher(logger log.Logger, source EventSource, startCursor uint64) *Dispatcher {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Dispatcher{
		logger: logger.WithComponent("sinks"),
		source: source,
		batch:  defaultBatch,
		cursor: startCursor,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetSinks replaces the active sink set. Events already delivered are not
// replayed to new sinks.
func (d *Dispatcher) SetSinks(sinks []Sink) {
	d.mu.Lock()
	d.sinks = sinks
	d.mu.Unlock()
	d.Kick()
}

// Cursor reports the sequence through which events have been dispatched.
func (d *Dispatcher) Cursor() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Kick schedules a drain. Safe to call from any goroutine; coalesces while
// a drain is pending.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start launches the delivery loop.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop drains outstanding events and shuts the loop down.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			d.drain(context.Background())
			return
		case <-d.kick:
			d.drain(context.Background())
		}
	}
}

// Flush synchronously delivers everything currently buffered. Used on
// shutdown and by callers that need delivery ordering guarantees.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.drain(ctx)
}

func (d *Dispatcher) drain(ctx context.Context) {
	d.drainMu.Lock()
	defer d.drainMu.Unlock()
	for {
		d.mu.Lock()
		cursor := d.cursor
		sinks := d.sinks
		d.mu.Unlock()

		events := d.source.Since(cursor, d.batch, "")
		if len(events) == 0 {
			return
		}
		for _, e := range events {
			if len(sinks) > 0 {
				payload, err := e.MarshalJSON()
				if err != nil {
					d.logger.Error("encode event", log.Err(err), log.Uint64("sequence", e.Sequence))
				} else {
					d.deliver(ctx, e, payload, sinks)
				}
			}
			d.mu.Lock()
			if e.Sequence > d.cursor {
				d.cursor = e.Sequence
			}
			d.mu.Unlock()
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e *changelog.Event, payload []byte, sinks []Sink) {
	for _, s := range sinks {
		start := time.Now()
		if err := s.Deliver(ctx, e, payload); err != nil {
			d.logger.Warn("sink delivery failed",
				log.Str("sink", s.Name()),
				log.Uint64("sequence", e.Sequence),
				log.Str("model", e.Model),
				log.Err(err))
			continue
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			d.logger.Debug("slow sink delivery",
				log.Str("sink", s.Name()),
				log.Uint64("sequence", e.Sequence),
				log.Str("took", elapsed.String()))
		}
	}
}
