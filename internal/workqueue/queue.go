package workqueue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

// Queue is one named durable delivery queue.
type Queue struct {
	db     *pebblestore.DB
	tenant string
	name   string

	mu      sync.Mutex
	lastSeq uint64
}

// Lease is the stored record of an in-flight delivery.
type Lease struct {
	Consumer       string `json:"consumer"`
	ExpiresAtMs    int64  `json:"expires_at_ms"`
	DeliveryCount  int    `json:"delivery_count"`
	LastDeliveryMs int64  `json:"last_delivery_ms"`
}

// Open initializes a queue and loads the last assigned sequence.
func Open(db *pebblestore.DB, tenant, name string) (*Queue, error) {
	q := &Queue{db: db, tenant: tenant, name: name}
	meta, err := db.Get(KeyMeta(tenant, name))
	if err != nil && !pebblestore.IsNotFound(err) {
		return nil, err
	}
	if len(meta) >= 8 {
		q.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue stores one payload and marks it available. Returns the assigned
// sequence.
func (q *Queue) Enqueue(ctx context.Context, tsMs int64, payload []byte) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	q.lastSeq++
	seq := q.lastSeq
	if err := b.Set(KeyMsg(q.tenant, q.name, seq), EncodeMessage(tsMs, payload), nil); err != nil {
		return 0, err
	}
	var zero [4]byte
	if err := b.Set(KeyAvail(q.tenant, q.name, seq), zero[:], nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], q.lastSeq)
	if err := b.Set(KeyMeta(q.tenant, q.name), meta[:], nil); err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.lastSeq = seq - 1
		return 0, err
	}
	return seq, nil
}

// Message is one leased delivery.
type Message struct {
	Seq           uint64 `json:"seq"`
	TsMs          int64  `json:"tsMs"`
	Payload       []byte `json:"payload"`
	DeliveryCount int    `json:"deliveryCount"`
}

// Lease takes up to max available messages for consumer, holding each for
// leaseDur. Messages lease in sequence order.
func (q *Queue) Lease(ctx context.Context, consumer string, max int, leaseDur time.Duration, nowMs int64) ([]Message, error) {
	if consumer == "" {
		return nil, fmt.Errorf("workqueue: consumer required")
	}
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	low, high := segBounds(q.tenant, q.name, availSeg)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()

	var out []Message
	for ok := iter.First(); ok && len(out) < max; ok = iter.Next() {
		seq := seqFromKey(iter.Key())
		prevCount := 0
		if v := iter.Value(); len(v) >= 4 {
			prevCount = int(binary.BigEndian.Uint32(v[:4]))
		}

		raw, err := q.db.Get(KeyMsg(q.tenant, q.name, seq))
		if err != nil {
			if pebblestore.IsNotFound(err) {
				// Orphaned marker; drop it and move on.
				if err := b.Delete(iter.Key(), nil); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
		dec, okDec := DecodeMessage(raw)
		if !okDec {
			if err := b.Delete(iter.Key(), nil); err != nil {
				return nil, err
			}
			continue
		}

		lease := Lease{
			Consumer:       consumer,
			ExpiresAtMs:    nowMs + leaseDur.Milliseconds(),
			DeliveryCount:  prevCount + 1,
			LastDeliveryMs: nowMs,
		}
		lv, err := json.Marshal(lease)
		if err != nil {
			return nil, fmt.Errorf("marshal lease: %w", err)
		}
		if err := b.Set(KeyLease(q.tenant, q.name, seq), lv, nil); err != nil {
			return nil, err
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			return nil, err
		}
		out = append(out, Message{Seq: seq, TsMs: dec.TsMs, Payload: dec.Payload, DeliveryCount: lease.DeliveryCount})
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete acknowledges leased sequences for consumer, removing the messages
// permanently. Sequences not leased by consumer are skipped. Returns the
// number completed.
func (q *Queue) Complete(ctx context.Context, consumer string, seqs []uint64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	completed := 0
	for _, seq := range seqs {
		raw, err := q.db.Get(KeyLease(q.tenant, q.name, seq))
		if err != nil {
			if pebblestore.IsNotFound(err) {
				continue
			}
			return completed, err
		}
		var lease Lease
		if err := json.Unmarshal(raw, &lease); err != nil {
			return completed, fmt.Errorf("unmarshal lease: %w", err)
		}
		if lease.Consumer != consumer {
			continue
		}
		if err := b.Delete(KeyLease(q.tenant, q.name, seq), nil); err != nil {
			return completed, err
		}
		if err := b.Delete(KeyMsg(q.tenant, q.name, seq), nil); err != nil {
			return completed, err
		}
		completed++
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return completed, nil
}

// ReclaimExpired returns messages whose lease expired before nowMs to the
// available set, preserving their delivery counts. Returns the number
// reclaimed.
func (q *Queue) ReclaimExpired(ctx context.Context, nowMs int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	low, high := segBounds(q.tenant, q.name, leaseSeg)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()

	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		var lease Lease
		if err := json.Unmarshal(iter.Value(), &lease); err != nil {
			continue
		}
		if lease.ExpiresAtMs > nowMs {
			continue
		}
		seq := seqFromKey(iter.Key())
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(lease.DeliveryCount))
		if err := b.Set(KeyAvail(q.tenant, q.name, seq), count[:], nil); err != nil {
			return reclaimed, err
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return reclaimed, nil
}

// Depth reports how many messages are available and how many are in flight.
func (q *Queue) Depth() (available, leased int, err error) {
	count := func(seg []byte) (int, error) {
		low, high := segBounds(q.tenant, q.name, seg)
		iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
		if err != nil {
			return 0, err
		}
		defer iter.Close()
		n := 0
		for ok := iter.First(); ok; ok = iter.Next() {
			n++
		}
		return n, nil
	}
	if available, err = count(availSeg); err != nil {
		return 0, 0, err
	}
	if leased, err = count(leaseSeg); err != nil {
		return 0, 0, err
	}
	return available, leased, nil
}
