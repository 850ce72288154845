package sinks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keeldb/keel/internal/analytics"
	"github.com/keeldb/keel/internal/archive"
	"github.com/keeldb/keel/internal/changelog"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/internal/workqueue"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testTargets struct {
	db *pebblestore.DB
}

func (tt *testTargets) ArchiveLog(name string) (ArchiveLog, error) {
	return archive.Open(tt.db, "acme", name)
}

func (tt *testTargets) Queue(name string) (Queue, error) {
	return workqueue.Open(tt.db, "acme", name)
}

func (tt *testTargets) Analytics() Analytics {
	return analytics.New(tt.db, "acme")
}

func testEvent(seq uint64) *changelog.Event {
	return &changelog.Event{
		ID:         "evt_1",
		Sequence:   seq,
		Timestamp:  1700000000000,
		Operation:  changelog.OpCreate,
		Model:      "Contact",
		DocumentID: "doc_1",
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		cfg Config
		ok  bool
	}{
		{Config{Type: TypeWebhook, URL: "http://example.com"}, true},
		{Config{Type: TypeWebhook}, false},
		{Config{Type: TypeForwardStore, Log: "changes"}, true},
		{Config{Type: TypeForwardStore}, false},
		{Config{Type: TypeQueue, Queue: "jobs"}, true},
		{Config{Type: TypeQueue}, false},
		{Config{Type: TypeAnalytics, Dataset: "crm"}, true},
		{Config{Type: TypeAnalytics}, false},
		{Config{Type: "smoke-signal"}, false},
		{Config{}, false},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if c.ok && err != nil {
			t.Fatalf("config %+v: unexpected error %v", c.cfg, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("config %+v: expected error", c.cfg)
		}
	}
}

func TestWebhookSignsBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotCustom = r.Header.Get("X-Team")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := Config{
		Type:    TypeWebhook,
		URL:     srv.URL,
		Secret:  "s3cret",
		Headers: map[string]string{"X-Team": "crm"},
	}
	sink, err := Build(cfg, nil, srv.Client())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	e := testEvent(7)
	payload, err := e.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := sink.Deliver(context.Background(), e, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if string(gotBody) != string(payload) {
		t.Fatalf("body = %s, want %s", gotBody, payload)
	}
	if gotCustom != "crm" {
		t.Fatalf("custom header = %q", gotCustom)
	}
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(payload)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}
}

func TestWebhookNoSecretNoSignature(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header[SignatureHeader]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := Build(Config{Type: TypeWebhook, URL: srv.URL}, nil, srv.Client())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	e := testEvent(1)
	payload, _ := e.MarshalJSON()
	if err := sink.Deliver(context.Background(), e, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sawHeader {
		t.Fatal("signature header set without a secret")
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink, err := Build(Config{Type: TypeWebhook, URL: srv.URL}, nil, srv.Client())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	e := testEvent(1)
	payload, _ := e.MarshalJSON()
	if err := sink.Deliver(context.Background(), e, payload); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestForwardStoreSink(t *testing.T) {
	db := newTestDB(t)
	targets := &testTargets{db: db}
	sink, err := Build(Config{Type: TypeForwardStore, Log: "changes"}, targets, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	e := testEvent(3)
	payload, _ := e.MarshalJSON()
	if err := sink.Deliver(context.Background(), e, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	l, err := archive.Open(db, "acme", "changes")
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	items, err := l.Read(0, 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if string(items[0].Payload) != string(payload) {
		t.Fatalf("payload = %s", items[0].Payload)
	}
	if items[0].TsMs != e.Timestamp {
		t.Fatalf("timestamp = %d, want %d", items[0].TsMs, e.Timestamp)
	}
}

func TestQueueSink(t *testing.T) {
	db := newTestDB(t)
	targets := &testTargets{db: db}
	sink, err := Build(Config{Type: TypeQueue, Queue: "jobs"}, targets, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	e := testEvent(9)
	payload, _ := e.MarshalJSON()
	if err := sink.Deliver(context.Background(), e, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	q, err := workqueue.Open(db, "acme", "jobs")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	available, leased, err := q.Depth()
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if available != 1 || leased != 0 {
		t.Fatalf("depth = %d/%d, want 1/0", available, leased)
	}
}

func TestAnalyticsSink(t *testing.T) {
	db := newTestDB(t)
	targets := &testTargets{db: db}
	sink, err := Build(Config{Type: TypeAnalytics, Dataset: "crm"}, targets, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	e := testEvent(1)
	payload, _ := e.MarshalJSON()
	if err := sink.Deliver(context.Background(), e, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	st := analytics.NewStore(db, "acme")
	points, err := st.Range("crm", analytics.MetricEvents, analytics.Res1m, 0, 2000000000000)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(points) != 1 || points[0].Value != 1 {
		t.Fatalf("points = %+v", points)
	}
}

func TestBuildAllSkipsBroken(t *testing.T) {
	db := newTestDB(t)
	targets := &testTargets{db: db}
	configs := []Config{
		{Type: TypeForwardStore, Log: "changes"},
		{Type: "bogus"},
		{Type: TypeAnalytics, Dataset: "crm"},
	}
	built, errs := BuildAll(configs, targets, nil)
	if len(built) != 2 {
		t.Fatalf("built = %d, want 2", len(built))
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %d, want 1", len(errs))
	}
}
