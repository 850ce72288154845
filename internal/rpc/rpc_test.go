package rpc

import (
	"context"
	"fmt"
	"strings"
	"testing"

	cfgpkg "github.com/keeldb/keel/internal/config"
	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/runtime"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

func newTestService(t *testing.T) (*Service, *runtime.Runtime) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return New(rt), rt
}

func dispatch(t *testing.T, svc *Service, body string) jsonval.Value {
	t.Helper()
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	return svc.Dispatch(context.Background(), req)
}

func asObject(t *testing.T, v jsonval.Value) *jsonval.Object {
	t.Helper()
	o, ok := v.(*jsonval.Object)
	if !ok {
		t.Fatalf("result kind = %v, want object", v.Kind())
	}
	return o
}

func fieldString(t *testing.T, o *jsonval.Object, key string) string {
	t.Helper()
	v, ok := o.Get(key)
	if !ok {
		t.Fatalf("missing field %q in %s", key, jsonval.Encode(o))
	}
	s, ok := v.(jsonval.String)
	if !ok {
		t.Fatalf("field %q kind = %v, want string", key, v.Kind())
	}
	return string(s)
}

func fieldInt(t *testing.T, o *jsonval.Object, key string) int64 {
	t.Helper()
	v, ok := o.Get(key)
	if !ok {
		t.Fatalf("missing field %q in %s", key, jsonval.Encode(o))
	}
	n, ok := v.(jsonval.Number)
	if !ok {
		t.Fatalf("field %q kind = %v, want number", key, v.Kind())
	}
	i, ok := n.Int64()
	if !ok {
		t.Fatalf("field %q = %s, not an int", key, n)
	}
	return i
}

func errMessage(t *testing.T, v jsonval.Value) string {
	t.Helper()
	o := asObject(t, v)
	ev, ok := o.Get("error")
	if !ok {
		t.Fatalf("expected error envelope, got %s", jsonval.Encode(v))
	}
	return fieldString(t, asObject(t, ev), "message")
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"tenant":"acme","method":"list","params":{"model":"contact"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Tenant != "acme" || req.Method != "list" {
		t.Fatalf("req = %+v", req)
	}
	if _, ok := req.Params.Get("model"); !ok {
		t.Fatal("params lost")
	}

	req, err = ParseRequest([]byte(`{"method":"list"}`))
	if err != nil {
		t.Fatalf("parse without params: %v", err)
	}
	if req.Params == nil || req.Params.Len() != 0 {
		t.Fatalf("params = %v, want empty object", req.Params)
	}

	if _, err := ParseRequest([]byte(`{"tenant":"acme"}`)); err == nil {
		t.Fatal("missing method accepted")
	}
	if _, err := ParseRequest([]byte(`{"method":"list","params":[1]}`)); err == nil {
		t.Fatal("array params accepted")
	}
	if _, err := ParseRequest([]byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	created := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Ada"},"ctx":{"userId":"u-1"}}}`))
	docID := fieldString(t, created, "id")
	if docID == "" {
		t.Fatal("no id assigned")
	}
	if got := fieldInt(t, created, "_version"); got != 1 {
		t.Fatalf("_version = %d", got)
	}
	if got := fieldString(t, created, "_createdBy"); got != "u-1" {
		t.Fatalf("_createdBy = %q", got)
	}

	fetched := asObject(t, dispatch(t, svc,
		fmt.Sprintf(`{"tenant":"acme","method":"get","params":{"model":"contact","id":"%s"}}`, docID)))
	if got := fieldString(t, fetched, "name"); got != "Ada" {
		t.Fatalf("name = %q", got)
	}

	missing := dispatch(t, svc, `{"tenant":"acme","method":"get","params":{"model":"contact","id":"nope"}}`)
	if missing.Kind() != jsonval.KindNull {
		t.Fatalf("missing get = %s", jsonval.Encode(missing))
	}
}

func TestUpdateDeleteFlow(t *testing.T) {
	svc, _ := newTestService(t)

	created := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"id":"c-1","name":"Ada","stage":"Lead"}}}`))
	if got := fieldString(t, created, "id"); got != "c-1" {
		t.Fatalf("id = %q", got)
	}

	updated := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"update","params":{"model":"contact","id":"c-1","data":{"name":"Ada L."}}}`))
	if got := fieldInt(t, updated, "_version"); got != 2 {
		t.Fatalf("_version = %d", got)
	}
	if got := fieldString(t, updated, "name"); got != "Ada L." {
		t.Fatalf("name = %q", got)
	}
	if got := fieldString(t, updated, "stage"); got != "Lead" {
		t.Fatalf("stage = %q, want merge to keep it", got)
	}

	deleted := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"delete","params":{"model":"contact","id":"c-1"}}`))
	if v, ok := deleted.Get("deleted"); !ok || v != jsonval.Bool(true) {
		t.Fatalf("delete result = %s", jsonval.Encode(deleted))
	}

	if got := dispatch(t, svc, `{"tenant":"acme","method":"get","params":{"model":"contact","id":"c-1"}}`); got.Kind() != jsonval.KindNull {
		t.Fatalf("get after delete = %s", jsonval.Encode(got))
	}

	// Deletes are idempotent; updates against tombstones are not.
	again := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"delete","params":{"model":"contact","id":"c-1"}}`))
	if v, ok := again.Get("deleted"); !ok || v != jsonval.Bool(true) {
		t.Fatalf("second delete result = %s", jsonval.Encode(again))
	}
	msg := errMessage(t, dispatch(t, svc,
		`{"tenant":"acme","method":"update","params":{"model":"contact","id":"c-1","data":{"name":"x"}}}`))
	if !strings.Contains(msg, "not found") {
		t.Fatalf("update tombstone error = %q", msg)
	}
}

func TestListWithOptions(t *testing.T) {
	svc, _ := newTestService(t)
	seed := []string{
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"id":"c-1","name":"Ada","stage":"Lead"}}}`,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"id":"c-2","name":"Grace","stage":"Customer"}}}`,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"id":"c-3","name":"Edsger","stage":"Lead"}}}`,
	}
	for _, body := range seed {
		asObject(t, dispatch(t, svc, body))
	}

	res := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"list","params":{"model":"contact","options":{"where":{"stage":"Lead"},"orderBy":"-name","limit":1}}}`))
	if got := fieldInt(t, res, "total"); got != 2 {
		t.Fatalf("total = %d", got)
	}
	if got := fieldInt(t, res, "limit"); got != 1 {
		t.Fatalf("limit = %d", got)
	}
	if v, ok := res.Get("hasMore"); !ok || v != jsonval.Bool(true) {
		t.Fatalf("hasMore = %s", jsonval.Encode(res))
	}
	data, _ := res.Get("data")
	arr, ok := data.(*jsonval.Array)
	if !ok || arr.Len() != 1 {
		t.Fatalf("data = %s", jsonval.Encode(data))
	}
	first := asObject(t, arr.Elems[0])
	if got := fieldString(t, first, "name"); got != "Edsger" {
		t.Fatalf("first = %q", got)
	}
}

func TestSearchMethod(t *testing.T) {
	svc, _ := newTestService(t)
	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Ada Lovelace"}}}`))
	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Grace Hopper"}}}`))

	res := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"search","params":{"model":"contact","query":"LOVE"}}`))
	if got := fieldInt(t, res, "total"); got != 1 {
		t.Fatalf("total = %d", got)
	}

	msg := errMessage(t, dispatch(t, svc, `{"tenant":"acme","method":"search","params":{"model":"contact"}}`))
	if !strings.Contains(msg, "query is required") {
		t.Fatalf("error = %q", msg)
	}
}

func TestSetSchemaEnablesInclude(t *testing.T) {
	svc, _ := newTestService(t)

	res := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"setSchema","params":{"schema":{"models":{"company":{"fields":{"name":{"type":"string"}}},"contact":{"fields":{"name":{"type":"string"},"company":{"type":"string","relation":{"target":"company"}}}}}}}}`))
	if v, ok := res.Get("success"); !ok || v != jsonval.Bool(true) {
		t.Fatalf("setSchema result = %s", jsonval.Encode(res))
	}

	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"company","data":{"id":"co-1","name":"Initech"}}}`))
	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"id":"c-1","name":"Ada","company":"co-1"}}}`))

	got := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"get","params":{"model":"contact","id":"c-1","options":{"include":["company"]}}}`))
	cv, ok := got.Get("company")
	if !ok {
		t.Fatalf("company missing: %s", jsonval.Encode(got))
	}
	company := asObject(t, cv)
	if got := fieldString(t, company, "name"); got != "Initech" {
		t.Fatalf("expanded company = %s", jsonval.Encode(company))
	}
}

func TestConfigureEventsPersists(t *testing.T) {
	svc, rt := newTestService(t)

	res := asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"configureEvents","params":{"sinks":[{"type":"forward-store","log":"audit"}]}}`))
	if v, ok := res.Get("success"); !ok || v != jsonval.Bool(true) {
		t.Fatalf("configureEvents result = %s", jsonval.Encode(res))
	}

	st, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	configs := st.SinkConfigs()
	if len(configs) != 1 || configs[0].Type != "forward-store" || configs[0].Log != "audit" {
		t.Fatalf("configs = %+v", configs)
	}
}

func TestRequestIDMinted(t *testing.T) {
	svc, rt := newTestService(t)

	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Ada"}}}`))
	asObject(t, dispatch(t, svc,
		`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Grace"},"ctx":{"requestId":"req-7"}}}`))

	st, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	events, _ := st.Events(0, 10, "")
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	if events[0].RequestID == "" {
		t.Fatal("request id not minted")
	}
	if events[1].RequestID != "req-7" {
		t.Fatalf("request id = %q, want caller's", events[1].RequestID)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown method", `{"tenant":"acme","method":"nope","params":{}}`, "unknown method"},
		{"missing model", `{"tenant":"acme","method":"create","params":{"data":{}}}`, "model is required"},
		{"bad tenant", `{"tenant":"bad name!","method":"list","params":{"model":"contact"}}`, "invalid tenant name"},
		{"data kind", `{"tenant":"acme","method":"create","params":{"model":"contact","data":"x"}}`, "data must be an object"},
		{"where kind", `{"tenant":"acme","method":"list","params":{"model":"contact","options":{"where":"x"}}}`, "where must be an object"},
		{"orderBy kind", `{"tenant":"acme","method":"list","params":{"model":"contact","options":{"orderBy":7}}}`, "orderBy"},
		{"sinks kind", `{"tenant":"acme","method":"configureEvents","params":{"sinks":{}}}`, "sinks must be an array"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := errMessage(t, dispatch(t, svc, tc.body))
			if !strings.Contains(msg, tc.want) {
				t.Fatalf("message = %q, want %q", msg, tc.want)
			}
		})
	}
}
