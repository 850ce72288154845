package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/runtime"
	"github.com/keeldb/keel/internal/store"
	"github.com/keeldb/keel/pkg/log"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// EventsController serves change-event queries and live subscriptions.
//
// Queries read the in-memory event buffer; subscriptions register with the
// store's hub over websocket or SSE. Both transports buffer pushes and drop
// the connection when the buffer fills, so a slow consumer never blocks
// writers.
type EventsController struct {
	rt     *runtime.Runtime
	logger log.Logger
	upgr   websocket.Upgrader
}

// NewEventsController creates a new events controller.
func NewEventsController(rt *runtime.Runtime, logger log.Logger) *EventsController {
	return &EventsController{
		rt:     rt,
		logger: logger.WithComponent("events"),
		upgr:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// RegisterRoutes registers event routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Buffered event queries (/v1/events)
// - Websocket subscriptions (/v1/subscribe)
// - SSE subscriptions (/v1/events/tail)
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events", c.handleEvents)
	mux.HandleFunc("/v1/subscribe", c.handleSubscribe)
	mux.HandleFunc("/v1/events/tail", c.handleTailSSE)
}

// handleEvents returns buffered events after a sequence.
// GET /v1/events?tenant=&since=&limit=&model=
func (c *EventsController) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	st, err := c.rt.Store(q.Get("tenant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, latest := st.Events(parseUint64(q.Get("since")), parseLimit(q.Get("limit")), q.Get("model"))
	arr := jsonval.NewArray()
	for _, e := range events {
		arr.Append(e.Value())
	}
	out := jsonval.NewObject()
	out.Set("events", arr)
	out.Set("latest", jsonval.Int(int64(latest)))
	writeValue(w, out)
}

// wsConn adapts one websocket peer to the hub's non-blocking Conn. Pushes
// land in the send channel; the write pump drains it. A full channel fails
// Send, which makes the hub drop the connection.
type wsConn struct {
	id   string
	wc   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *wsConn) Close() { c.once.Do(func() { close(c.done) }) }

func (c *wsConn) writePump() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	defer c.wc.Close()
	for {
		select {
		case payload := <-c.send:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-t.C:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-c.done:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.wc.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleSubscribe upgrades to a websocket and pushes one serialized event
// per text message. The client may send {"type":"subscribe","model","filter"}
// to renarrow its subscription.
// GET /v1/subscribe?tenant=&model=&filter=
func (c *EventsController) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := c.rt.Store(q.Get("tenant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wc, err := c.upgr.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("ws upgrade failed", log.Err(err))
		return
	}
	conn := &wsConn{
		id:   uuid.NewString(),
		wc:   wc,
		send: make(chan []byte, c.rt.Config().SubscriberBuffer),
		done: make(chan struct{}),
	}
	if err := st.Hub().Subscribe(conn, q.Get("model"), q.Get("filter")); err != nil {
		_ = wc.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeTimeout))
		_ = wc.Close()
		return
	}
	go conn.writePump()
	c.readLoop(st, conn)
	st.Hub().Unsubscribe(conn.id)
	conn.Close()
}

// readLoop consumes renarrow messages until the peer goes away.
func (c *EventsController) readLoop(st *store.Store, conn *wsConn) {
	for {
		op, data, err := conn.wc.ReadMessage()
		if err != nil {
			return
		}
		if op != websocket.TextMessage {
			continue
		}
		var msg subscribeMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "subscribe" {
			continue
		}
		if err := st.Hub().Update(conn.id, msg.Model, msg.Filter); err != nil {
			c.logger.Debug("subscription update rejected", log.Str("conn", conn.id), log.Err(err))
		}
	}
}

// sseConn buffers pushes for one SSE client; the handler goroutine drains
// the channel into the response.
type sseConn struct {
	id   string
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *sseConn) ID() string { return c.id }

func (c *sseConn) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *sseConn) Close() { c.once.Do(func() { close(c.done) }) }

// handleTailSSE streams events as SSE data frames.
// GET /v1/events/tail?tenant=&model=&filter=
func (c *EventsController) handleTailSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	st, err := c.rt.Store(q.Get("tenant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	conn := &sseConn{
		id:   uuid.NewString(),
		send: make(chan []byte, c.rt.Config().SubscriberBuffer),
		done: make(chan struct{}),
	}
	if err := st.Hub().Subscribe(conn, q.Get("model"), q.Get("filter")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer st.Hub().Unsubscribe(conn.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case payload := <-conn.send:
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-conn.done:
			return
		}
	}
}
