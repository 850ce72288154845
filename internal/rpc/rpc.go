package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/runtime"
	"github.com/keeldb/keel/internal/schema"
	"github.com/keeldb/keel/internal/sinks"
	"github.com/keeldb/keel/internal/store"
	"github.com/keeldb/keel/pkg/id"
	"github.com/keeldb/keel/pkg/log"
)

// Request is one decoded RPC envelope.
type Request struct {
	Tenant string
	Method string
	Params *jsonval.Object
}

// ParseRequest decodes a {tenant?, method, params?} body. Params defaults to
// an empty object so handlers never nil-check it.
func ParseRequest(body []byte) (*Request, error) {
	obj, err := jsonval.DecodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	req := &Request{Params: jsonval.NewObject()}
	if s, ok := stringAt(obj, "tenant"); ok {
		req.Tenant = s
	}
	if s, ok := stringAt(obj, "method"); ok {
		req.Method = s
	}
	if v, ok := obj.Get("params"); ok {
		p, ok := v.(*jsonval.Object)
		if !ok {
			return nil, fmt.Errorf("params must be an object")
		}
		req.Params = p
	}
	if req.Method == "" {
		return nil, fmt.Errorf("method is required")
	}
	return req, nil
}

// Service dispatches RPC methods against per-tenant stores.
type Service struct {
	rt     *runtime.Runtime
	logger log.Logger
	reqIDs *id.Generator
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger constructs the service with an injected logger.
func NewWithLogger(rt *runtime.Runtime, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Service{rt: rt, logger: logger.WithComponent("rpc"), reqIDs: id.NewGenerator()}
}

// Dispatch resolves the tenant store and runs the named method. Every
// failure, including panics, becomes an {"error":{"message":...}} value;
// the transport always writes 200 for dispatched requests.
func (s *Service) Dispatch(ctx context.Context, req *Request) (result jsonval.Value) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc panic", log.Str("method", req.Method), log.F("panic", r))
			result = ErrorValue(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if !knownMethod(req.Method) {
		return ErrorValue(fmt.Sprintf("unknown method %q", req.Method))
	}
	st, err := s.rt.Store(req.Tenant)
	if err != nil {
		return ErrorValue(err.Error())
	}
	v, err := s.call(ctx, st, req.Method, req.Params)
	if err != nil {
		s.logger.Debug("rpc error", log.Str("tenant", st.Tenant()), log.Str("method", req.Method), log.Err(err))
		return ErrorValue(err.Error())
	}
	return v
}

func knownMethod(m string) bool {
	switch m {
	case "setSchema", "create", "get", "update", "delete", "list", "search", "configureEvents":
		return true
	}
	return false
}

func (s *Service) call(ctx context.Context, st *store.Store, method string, params *jsonval.Object) (jsonval.Value, error) {
	switch method {
	case "setSchema":
		return s.setSchema(ctx, st, params)
	case "create":
		return s.create(ctx, st, params)
	case "get":
		return s.get(ctx, st, params)
	case "update":
		return s.update(ctx, st, params)
	case "delete":
		return s.delete(ctx, st, params)
	case "list":
		return s.list(ctx, st, params)
	case "search":
		return s.search(ctx, st, params)
	case "configureEvents":
		return s.configureEvents(ctx, st, params)
	}
	return nil, fmt.Errorf("unknown method %q", method)
}

func (s *Service) setSchema(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	v, ok := params.Get("schema")
	if !ok {
		return nil, fmt.Errorf("schema is required")
	}
	raw, ok := v.(*jsonval.Object)
	if !ok {
		return nil, fmt.Errorf("schema must be an object")
	}
	sch, warnings, err := schema.Parse(raw)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("schema relation target missing", log.Str("tenant", st.Tenant()), log.Str("detail", w.String()))
	}
	if err := st.SetSchema(ctx, sch); err != nil {
		return nil, err
	}
	return successValue(), nil
}

func (s *Service) create(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	data, err := objectParam(params, "data")
	if err != nil {
		return nil, err
	}
	doc, err := st.Create(ctx, model, data, s.actor(params))
	if err != nil {
		return nil, err
	}
	return doc.Value(), nil
}

func (s *Service) get(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	docID, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	opts, err := getOptions(params)
	if err != nil {
		return nil, err
	}
	doc, err := st.Get(ctx, model, docID, opts)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return jsonval.Null{}, nil
	}
	return doc.Value(), nil
}

func (s *Service) update(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	docID, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	data, err := objectParam(params, "data")
	if err != nil {
		return nil, err
	}
	doc, err := st.Update(ctx, model, docID, data, s.actor(params))
	if err != nil {
		return nil, err
	}
	return doc.Value(), nil
}

func (s *Service) delete(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	docID, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	if err := st.Delete(ctx, model, docID, s.actor(params)); err != nil {
		return nil, err
	}
	return deletedValue(), nil
}

func (s *Service) list(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	opts, err := listOptions(params)
	if err != nil {
		return nil, err
	}
	res, err := st.List(ctx, model, opts)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}

func (s *Service) search(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	model, err := stringParam(params, "model")
	if err != nil {
		return nil, err
	}
	query, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}
	opts, err := listOptions(params)
	if err != nil {
		return nil, err
	}
	res, err := st.Search(ctx, model, query, opts)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}

func (s *Service) configureEvents(ctx context.Context, st *store.Store, params *jsonval.Object) (jsonval.Value, error) {
	v, ok := params.Get("sinks")
	if !ok {
		return nil, fmt.Errorf("sinks is required")
	}
	arr, ok := v.(*jsonval.Array)
	if !ok {
		return nil, fmt.Errorf("sinks must be an array")
	}
	var configs []sinks.Config
	if err := json.Unmarshal(jsonval.Encode(arr), &configs); err != nil {
		return nil, fmt.Errorf("parse sinks: %w", err)
	}
	if err := st.ConfigureSinks(ctx, configs); err != nil {
		return nil, err
	}
	return successValue(), nil
}

// actor reads the optional {userId, requestId} context object. A request id
// is minted when the caller does not supply one, so every mutation event
// carries a correlatable id.
func (s *Service) actor(params *jsonval.Object) store.Actor {
	var a store.Actor
	if v, ok := params.Get("ctx"); ok {
		if o, ok := v.(*jsonval.Object); ok {
			a.UserID, _ = stringAt(o, "userId")
			a.RequestID, _ = stringAt(o, "requestId")
		}
	}
	if a.RequestID == "" {
		a.RequestID = s.reqIDs.Next().String()
	}
	return a
}

func successValue() jsonval.Value {
	o := jsonval.NewObject()
	o.Set("success", jsonval.Bool(true))
	return o
}

func deletedValue() jsonval.Value {
	o := jsonval.NewObject()
	o.Set("deleted", jsonval.Bool(true))
	return o
}

// ErrorValue builds the {"error":{"message":...}} envelope.
func ErrorValue(msg string) jsonval.Value {
	inner := jsonval.NewObject()
	inner.Set("message", jsonval.String(msg))
	o := jsonval.NewObject()
	o.Set("error", inner)
	return o
}
