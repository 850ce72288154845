package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/keeldb/keel/internal/runtime"
)

// GeneralController handles general HTTP endpoints like health and tenants.
//
// It provides endpoints for service health monitoring and tenant management
// operations that are not specific to documents or events.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Tenant management (/v1/tenants, /v1/tenants/create)
// - Forced checkpoints (/v1/checkpoint)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/tenants", c.handleListTenants)
	mux.HandleFunc("/v1/tenants/create", c.handleTenantCreate)
	mux.HandleFunc("/v1/checkpoint", c.handleCheckpoint)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleListTenants lists all known tenants.
//
// Returns a JSON response with an array of tenant metadata records.
func (c *GeneralController) handleListTenants(w http.ResponseWriter, r *http.Request) {
	metas, err := c.rt.Tenants()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tenants")
		return
	}
	writeJSON(w, map[string]any{"tenants": metas})
}

// handleTenantCreate creates a tenant metadata record.
//
// Expects a JSON body with a "tenant" field. Returns 201 Created on success.
func (c *GeneralController) handleTenantCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req tenantReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := c.rt.EnsureTenant(req.Tenant); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeCreated(w)
}

// handleCheckpoint forces a checkpoint of the named tenant's store.
//
// Expects a JSON body with a "tenant" field. Returns {"success": true}.
func (c *GeneralController) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req tenantReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := c.rt.Store(req.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := st.Checkpoint(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}
