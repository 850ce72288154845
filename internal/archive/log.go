package archive

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

// Log is one named durable event log. Appends assign contiguous sequences
// persisted alongside the entries, so a reopened log continues where it
// stopped.
type Log struct {
	db     *pebblestore.DB
	tenant string
	name   string

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a log and loads the last assigned sequence.
func Open(db *pebblestore.DB, tenant, name string) (*Log, error) {
	l := &Log{db: db, tenant: tenant, name: name}
	meta, err := db.Get(KeyMeta(tenant, name))
	if err != nil && !pebblestore.IsNotFound(err) {
		return nil, err
	}
	if len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Name returns the log name.
func (l *Log) Name() string { return l.name }

// Append stores one payload with its write timestamp and returns the
// assigned sequence. Entry and metadata commit in one batch.
func (l *Log) Append(ctx context.Context, tsMs int64, payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	l.lastSeq++
	seq := l.lastSeq
	if err := b.Set(KeyEntry(l.tenant, l.name, seq), EncodeRecord(tsMs, payload), nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyMeta(l.tenant, l.name), meta[:], nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		l.lastSeq = seq - 1
		return 0, err
	}
	return seq, nil
}

// Item is one read entry.
type Item struct {
	Seq     uint64 `json:"seq"`
	TsMs    int64  `json:"tsMs"`
	Payload []byte `json:"payload"`
}

// Read returns up to limit entries with sequence > since in ascending order.
// limit <= 0 means no cap. Corrupt entries are skipped.
func (l *Log) Read(since uint64, limit int) ([]Item, error) {
	low, high := entryBounds(l.tenant, l.name)
	if since > 0 {
		low = KeyEntry(l.tenant, l.name, since+1)
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var items []Item
	for ok := iter.First(); ok; ok = iter.Next() {
		if limit > 0 && len(items) >= limit {
			break
		}
		dec, okDec := DecodeRecord(iter.Value())
		if !okDec {
			continue
		}
		items = append(items, Item{Seq: seqFromKey(iter.Key()), TsMs: dec.TsMs, Payload: dec.Payload})
	}
	return items, nil
}

// Stats describes the stored extent of a log.
type Stats struct {
	Count    int
	FirstSeq uint64
	LastSeq  uint64
}

// Stats scans the log's entries and reports count and sequence bounds.
func (l *Log) Stats() (Stats, error) {
	low, high := entryBounds(l.tenant, l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return Stats{}, err
	}
	defer iter.Close()

	var s Stats
	for ok := iter.First(); ok; ok = iter.Next() {
		if s.Count == 0 {
			s.FirstSeq = seqFromKey(iter.Key())
		}
		s.LastSeq = seqFromKey(iter.Key())
		s.Count++
	}
	return s, nil
}

// TrimOlderThan deletes entries whose timestamp is before cutoffMs. Entries
// are appended in time order, so the scan stops at the first survivor.
// Deletes commit in batches of batchLimit with an optional throttle between
// commits. Returns the number of deleted entries.
func (l *Log) TrimOlderThan(ctx context.Context, cutoffMs int64, batchLimit int, throttle time.Duration) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 1024
	}
	low, high := entryBounds(l.tenant, l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok; {
		b := l.db.NewBatch()
		n := 0
		for ok && n < batchLimit {
			dec, okDec := DecodeRecord(iter.Value())
			if okDec && dec.TsMs >= cutoffMs {
				ok = false
				break
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			deleted++
			n++
			ok = iter.Next()
		}
		if n == 0 {
			b.Close()
			break
		}
		if err := l.db.CommitBatch(ctx, b); err != nil {
			b.Close()
			return deleted, err
		}
		b.Close()
		if throttle > 0 {
			time.Sleep(throttle)
		}
	}
	if deleted > 0 {
		// Reclaim space from the purged range.
		_ = l.db.CompactRange(low, high)
	}
	return deleted, nil
}

// TrimToMaxCount keeps at most maxCount newest entries, deleting from the
// oldest. Returns the number of deleted entries.
func (l *Log) TrimToMaxCount(ctx context.Context, maxCount int) (int, error) {
	if maxCount < 0 {
		return 0, nil
	}
	stats, err := l.Stats()
	if err != nil {
		return 0, err
	}
	excess := stats.Count - maxCount
	if excess <= 0 {
		return 0, nil
	}

	low, high := entryBounds(l.tenant, l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := l.db.NewBatch()
	defer b.Close()
	deleted := 0
	for ok := iter.First(); ok && deleted < excess; ok = iter.Next() {
		if err := b.Delete(iter.Key(), nil); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	if deleted > 0 {
		_ = l.db.CompactRange(low, high)
	}
	return deleted, nil
}
