package controllers

import (
	"net/http"

	"github.com/keeldb/keel/internal/rpc"
	"github.com/keeldb/keel/internal/runtime"
	"github.com/keeldb/keel/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general *GeneralController
	rpc     *RPCController
	events  *EventsController
	consume *ConsumeController
}

// NewControllerRegistry creates a new controller registry.
//
// It initializes all controllers with the provided runtime and RPC service.
func NewControllerRegistry(rt *runtime.Runtime, svc *rpc.Service, logger log.Logger) *ControllerRegistry {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		rpc:     NewRPCController(svc),
		events:  NewEventsController(rt, logger),
		consume: NewConsumeController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This method sets up all HTTP endpoints for the Keel service: general
// endpoints (health, tenants, checkpoint), the RPC dispatch endpoint,
// event query/subscription endpoints, and the consumption endpoints for
// archive logs, work queues, and analytics.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.rpc.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	r.consume.RegisterRoutes(mux)
}
