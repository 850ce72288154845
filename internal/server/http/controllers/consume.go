package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/keeldb/keel/internal/runtime"
)

const defaultLeaseMs = 30_000

// ConsumeController serves the durable sink read side: archive log reads,
// work queue lease/complete, and analytics series queries. It shares the
// per-tenant target cache with the sink dispatcher, so sequence assignment
// and lease state stay behind one mutex per log/queue.
type ConsumeController struct {
	rt *runtime.Runtime
}

// NewConsumeController creates a new consume controller.
func NewConsumeController(rt *runtime.Runtime) *ConsumeController {
	return &ConsumeController{rt: rt}
}

// RegisterRoutes registers consumption routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Archive log reads (/v1/archive)
// - Work queue leasing (/v1/queue/lease, /v1/queue/complete)
// - Analytics series (/v1/analytics)
func (c *ConsumeController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/archive", c.handleArchiveRead)
	mux.HandleFunc("/v1/queue/lease", c.handleQueueLease)
	mux.HandleFunc("/v1/queue/complete", c.handleQueueComplete)
	mux.HandleFunc("/v1/analytics", c.handleAnalyticsRange)
}

// handleArchiveRead reads entries from an archive log.
// GET /v1/archive?tenant=&log=&since=&limit=
func (c *ConsumeController) handleArchiveRead(w http.ResponseWriter, r *http.Request) {
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
	name := q.Get("log")
	if name == "" {
		writeError(w, http.StatusBadRequest, "log is required")
		return
	}
	l, err := st.SinkTargets().ArchiveLog(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := l.Read(parseUint64(q.Get("since")), parseLimit(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"items": items})
}

// handleQueueLease leases available messages. Expired leases are reclaimed
// first, so abandoned messages become deliverable again.
// POST /v1/queue/lease
func (c *ConsumeController) handleQueueLease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req queueLeaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := c.rt.Store(req.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Queue == "" {
		writeError(w, http.StatusBadRequest, "queue is required")
		return
	}
	if req.Consumer == "" {
		writeError(w, http.StatusBadRequest, "consumer is required")
		return
	}
	qu, err := st.SinkTargets().Queue(req.Queue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now().UnixMilli()
	if _, err := qu.ReclaimExpired(r.Context(), now); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	leaseMs := req.LeaseMs
	if leaseMs <= 0 {
		leaseMs = defaultLeaseMs
	}
	msgs, err := qu.Lease(r.Context(), req.Consumer, req.Max, time.Duration(leaseMs)*time.Millisecond, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"messages": msgs})
}

// handleQueueComplete acknowledges leased sequences.
// POST /v1/queue/complete
func (c *ConsumeController) handleQueueComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req queueCompleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := c.rt.Store(req.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Queue == "" {
		writeError(w, http.StatusBadRequest, "queue is required")
		return
	}
	qu, err := st.SinkTargets().Queue(req.Queue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	n, err := qu.Complete(r.Context(), req.Consumer, req.Seqs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]int{"completed": n})
}

// handleAnalyticsRange returns one metric's bucket series.
// GET /v1/analytics?tenant=&dataset=&metric=&res=&from=&to=
func (c *ConsumeController) handleAnalyticsRange(w http.ResponseWriter, r *http.Request) {
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
	dataset := q.Get("dataset")
	metric := q.Get("metric")
	if dataset == "" || metric == "" {
		writeError(w, http.StatusBadRequest, "dataset and metric are required")
		return
	}
	res := q.Get("res")
	if res == "" {
		res = "1m"
	}
	points, err := st.SinkTargets().Analytics().Range(dataset, metric, res, parseInt64(q.Get("from")), parseInt64(q.Get("to")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"points": points})
}
