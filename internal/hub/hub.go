// Package hub tracks live push connections and forwards matching change
// events to them. The hub is transport-agnostic: websocket and SSE handlers
// register connections behind the Conn interface.
package hub

import (
	"sync"

	"github.com/keeldb/keel/internal/changelog"
	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/pkg/log"
)

// Conn is one live subscriber connection. Send must not block: transports
// buffer writes and report an error when the buffer is full or the peer is
// gone. A failed Send removes the connection from the hub.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close()
}

type subscription struct {
	conn   Conn
	model  string
	filter eventFilter
}

// Hub is the registry of active subscriptions for one store.
type Hub struct {
	logger log.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

// New creates an empty hub.
func New(logger log.Logger) *Hub {
	return &Hub{
		logger: logger.WithComponent("hub"),
		subs:   make(map[string]*subscription),
	}
}

// Subscribe registers a connection with an optional model filter and an
// optional expression filter. A filter that fails to compile rejects the
// subscription.
func (h *Hub) Subscribe(conn Conn, model, filterExpr string) error {
	f, err := newEventFilter(filterExpr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.subs[conn.ID()] = &subscription{conn: conn, model: model, filter: f}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("hub.subscribe",
		log.Str("conn", conn.ID()),
		log.Str("model", model),
		log.Bool("filtered", filterExpr != ""),
		log.Int("active", n),
	)
	return nil
}

// Update narrows an existing subscription's model and expression filter.
// Unknown connection ids are ignored.
func (h *Hub) Update(id, model, filterExpr string) error {
	f, err := newEventFilter(filterExpr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if sub, ok := h.subs[id]; ok {
		sub.model = model
		sub.filter = f
	}
	h.mu.Unlock()
	return nil
}

// Unsubscribe removes a connection without closing it. Transports call this
// when the peer disconnects on its own.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast pushes the event to every matching subscriber. The event
// serializes once; all subscribers receive identical bytes. Connections
// whose Send fails are removed and closed immediately.
func (h *Hub) Broadcast(e *changelog.Event) {
	h.mu.Lock()
	if len(h.subs) == 0 {
		h.mu.Unlock()
		return
	}
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	payload := jsonval.Encode(e.Value())
	var eventMap interface{}
	var dropped []string
	for _, sub := range subs {
		if sub.model != "" && sub.model != e.Model {
			continue
		}
		if sub.filter.enabled {
			if eventMap == nil {
				eventMap = eventAsMap(e)
			}
			if !sub.filter.Eval(e, eventMap) {
				continue
			}
		}
		if err := sub.conn.Send(payload); err != nil {
			dropped = append(dropped, sub.conn.ID())
			h.logger.Warn("subscriber dropped",
				log.Str("conn", sub.conn.ID()),
				log.Uint64("seq", e.Sequence),
				log.Err(err),
			)
		}
	}

	if len(dropped) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range dropped {
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			sub.conn.Close()
		}
	}
	h.mu.Unlock()
}
