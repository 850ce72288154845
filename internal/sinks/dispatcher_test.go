package sinks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keeldb/keel/internal/changelog"
)

// lockedLog guards a changelog ring the way a store's mutex would.
type lockedLog struct {
	mu  sync.Mutex
	log *changelog.Log
}

func newLockedLog(lastSeq uint64) *lockedLog {
	return &lockedLog{log: changelog.NewLog(changelog.DefaultCapacity, lastSeq)}
}

func (s *lockedLog) Append(e *changelog.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Append(e)
}

func (s *lockedLog) Since(since uint64, limit int, model string) []*changelog.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Since(since, limit, model)
}

type recordingSink struct {
	name string
	fail bool

	mu        sync.Mutex
	delivered []uint64
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Deliver(ctx context.Context, e *changelog.Event, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.delivered = append(r.delivered, e.Sequence)
	return nil
}

func (r *recordingSink) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.delivered))
	copy(out, r.delivered)
	return out
}

func appendEvents(src *lockedLog, n int) {
	for i := 0; i < n; i++ {
		src.Append(&changelog.Event{
			ID:         "evt",
			Timestamp:  1700000000000 + int64(i),
			Operation:  changelog.OpCreate,
			Model:      "Contact",
			DocumentID: "doc",
		})
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	src := newLockedLog(0)
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(nil, src, 0)
	d.SetSinks([]Sink{sink})

	appendEvents(src, 3)
	d.Flush(context.Background())

	got := sink.seqs()
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
	if d.Cursor() != 3 {
		t.Fatalf("cursor = %d, want 3", d.Cursor())
	}
}

func TestDispatcherFailingSinkDoesNotBlockOthers(t *testing.T) {
	src := newLockedLog(0)
	bad := &recordingSink{name: "bad", fail: true}
	good := &recordingSink{name: "good"}
	d := NewDispatcher(nil, src, 0)
	d.SetSinks([]Sink{bad, good})

	appendEvents(src, 2)
	d.Flush(context.Background())

	if got := good.seqs(); len(got) != 2 {
		t.Fatalf("good sink delivered %v, want 2 events", got)
	}
	// No retry: the cursor moved past the failed deliveries.
	if d.Cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", d.Cursor())
	}
	appendEvents(src, 1)
	d.Flush(context.Background())
	if got := good.seqs(); len(got) != 3 {
		t.Fatalf("good sink delivered %v after second flush", got)
	}
}

func TestDispatcherCursorAdvancesWithoutSinks(t *testing.T) {
	src := newLockedLog(0)
	d := NewDispatcher(nil, src, 0)

	appendEvents(src, 4)
	d.Flush(context.Background())

	if d.Cursor() != 4 {
		t.Fatalf("cursor = %d, want 4", d.Cursor())
	}
}

func TestDispatcherResumesFromStartCursor(t *testing.T) {
	src := newLockedLog(0)
	appendEvents(src, 5)

	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(nil, src, 3)
	d.SetSinks([]Sink{sink})
	d.Flush(context.Background())

	got := sink.seqs()
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("delivered %v, want [4 5]", got)
	}
}

func TestDispatcherSwapSinks(t *testing.T) {
	src := newLockedLog(0)
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	d := NewDispatcher(nil, src, 0)

	d.SetSinks([]Sink{first})
	appendEvents(src, 2)
	d.Flush(context.Background())

	d.SetSinks([]Sink{second})
	appendEvents(src, 1)
	d.Flush(context.Background())

	if got := first.seqs(); len(got) != 2 {
		t.Fatalf("first sink delivered %v, want 2", got)
	}
	// Already-dispatched events are not replayed to the new sink.
	got := second.seqs()
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("second sink delivered %v, want [3]", got)
	}
}

func TestDispatcherBackgroundKick(t *testing.T) {
	src := newLockedLog(0)
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(nil, src, 0)
	d.SetSinks([]Sink{sink})
	d.Start()
	defer d.Stop()

	appendEvents(src, 3)
	d.Kick()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.seqs()) == 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("delivered %v, want 3 events", sink.seqs())
}

func TestDispatcherStopDrains(t *testing.T) {
	src := newLockedLog(0)
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(nil, src, 0)
	d.SetSinks([]Sink{sink})
	d.Start()

	appendEvents(src, 2)
	d.Stop()

	if got := sink.seqs(); len(got) != 2 {
		t.Fatalf("delivered %v, want 2 events after stop", got)
	}
}
