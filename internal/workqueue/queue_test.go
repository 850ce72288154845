package workqueue

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	q, err := Open(db, "acme", "events")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func enqueueN(t *testing.T, q *Queue, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := q.Enqueue(ctx, int64(100+i), []byte{byte('a' + i)}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
}

func TestLeaseInOrder(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 5)
	ctx := context.Background()

	msgs, err := q.Lease(ctx, "c1", 3, time.Minute, 1000)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("leased %d, want 3", len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("msg %d seq = %d", i, m.Seq)
		}
		if m.DeliveryCount != 1 {
			t.Fatalf("delivery count = %d", m.DeliveryCount)
		}
	}
	if string(msgs[0].Payload) != "a" || msgs[0].TsMs != 100 {
		t.Fatalf("msg = %+v", msgs[0])
	}

	// Leased messages are not available to another consumer.
	more, err := q.Lease(ctx, "c2", 10, time.Minute, 1000)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(more) != 2 || more[0].Seq != 4 {
		t.Fatalf("second lease = %+v", more)
	}
}

func TestCompleteRemoves(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 3)
	ctx := context.Background()

	msgs, _ := q.Lease(ctx, "c1", 3, time.Minute, 1000)
	if len(msgs) != 3 {
		t.Fatalf("lease = %d", len(msgs))
	}
	n, err := q.Complete(ctx, "c1", []uint64{1, 2})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n != 2 {
		t.Fatalf("completed = %d", n)
	}

	// Wrong consumer cannot complete the remaining lease.
	n, err = q.Complete(ctx, "intruder", []uint64{3})
	if err != nil || n != 0 {
		t.Fatalf("foreign complete = %d, %v", n, err)
	}

	avail, leased, err := q.Depth()
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if avail != 0 || leased != 1 {
		t.Fatalf("depth = %d avail, %d leased", avail, leased)
	}
}

func TestReclaimExpired(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 2)
	ctx := context.Background()

	if _, err := q.Lease(ctx, "c1", 2, 500*time.Millisecond, 1000); err != nil {
		t.Fatalf("lease: %v", err)
	}

	// Not yet expired.
	n, err := q.ReclaimExpired(ctx, 1200)
	if err != nil || n != 0 {
		t.Fatalf("early reclaim = %d, %v", n, err)
	}

	// Past expiry both come back, keeping their delivery counts.
	n, err = q.ReclaimExpired(ctx, 2000)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 2 {
		t.Fatalf("reclaimed = %d", n)
	}
	msgs, err := q.Lease(ctx, "c2", 2, time.Minute, 3000)
	if err != nil {
		t.Fatalf("lease after reclaim: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("leased after reclaim = %d", len(msgs))
	}
	for _, m := range msgs {
		if m.DeliveryCount != 2 {
			t.Fatalf("delivery count after reclaim = %d", m.DeliveryCount)
		}
	}
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	q, err := Open(db, "acme", "events")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	ctx := context.Background()
	if _, err := q.Enqueue(ctx, 1, []byte("x")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	q2, err := Open(db2, "acme", "events")
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	seq, err := q2.Enqueue(ctx, 2, []byte("y"))
	if err != nil {
		t.Fatalf("enqueue after reopen: %v", err)
	}
	if seq != 2 {
		t.Fatalf("seq after reopen = %d, want 2", seq)
	}
}
