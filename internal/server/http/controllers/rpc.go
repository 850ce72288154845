package controllers

import (
	"io"
	"net/http"

	"github.com/keeldb/keel/internal/rpc"
)

// RPCController serves the JSON method dispatch endpoint.
//
// Every well-formed request gets a 200 with either the method result or an
// {"error":{"message":...}} envelope; only transport-level failures
// (unreadable or undecodable bodies, wrong HTTP method) use other codes.
type RPCController struct {
	svc *rpc.Service
}

// NewRPCController creates a new RPC controller.
func NewRPCController(svc *rpc.Service) *RPCController {
	return &RPCController{svc: svc}
}

// RegisterRoutes registers the RPC route with the given mux.
func (c *RPCController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/rpc", c.handleRPC)
}

// handleRPC decodes the {tenant?, method, params} envelope and dispatches it.
func (c *RPCController) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	req, err := rpc.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeValue(w, c.svc.Dispatch(r.Context(), req))
}
