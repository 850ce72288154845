// Package analytics maintains bucketed event counters per dataset. Analytics
// sinks record every change event at minute, five-minute and hourly
// resolutions; the query surface reads a time range of one metric back.
//
// Keys follow t/{tenant}/analytics/{dataset}/{metric}/{res}/{bucket_ms};
// values are big-endian int64 counters. Bucket timestamps render as decimal
// millisecond strings, which keep a fixed width (and therefore sort order)
// for any realistic clock.
package analytics

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

// Bucket resolutions.
const (
	Res1m = "1m"
	Res5m = "5m"
	Res1h = "1h"
)

// Metric names recorded per event.
const (
	MetricEvents = "events"
)

var resolutions = []string{Res1m, Res5m, Res1h}

// StepMs returns the bucket width for a resolution, or 0 when unknown.
func StepMs(res string) int64 {
	switch res {
	case Res1m:
		return int64(time.Minute / time.Millisecond)
	case Res5m:
		return int64(5 * time.Minute / time.Millisecond)
	case Res1h:
		return int64(time.Hour / time.Millisecond)
	default:
		return 0
	}
}

// Store records and queries counters for one tenant.
type Store struct {
	db     *pebblestore.DB
	tenant string
}

// New creates a Store over the shared database.
func New(db *pebblestore.DB, tenant string) *Store {
	return &Store{db: db, tenant: tenant}
}

func (s *Store) key(dataset, metric, res string, bucketMs int64) []byte {
	b := make([]byte, 0, len(s.tenant)+len(dataset)+len(metric)+40)
	b = append(b, "t/"...)
	b = append(b, s.tenant...)
	b = append(b, "/analytics/"...)
	b = append(b, dataset...)
	b = append(b, '/')
	b = append(b, metric...)
	b = append(b, '/')
	b = append(b, res...)
	b = append(b, '/')
	b = append(b, strconv.FormatInt(bucketMs, 10)...)
	return b
}

func (s *Store) metricPrefix(dataset, metric, res string) []byte {
	b := s.key(dataset, metric, res, 0)
	return b[:len(b)-1]
}

// RecordEvent increments the dataset's counters for one change event at
// every resolution: total events, per-operation, and per-model.
func (s *Store) RecordEvent(dataset, model, operation string, tsMs int64) error {
	metrics := []string{
		MetricEvents,
		MetricEvents + "." + operation,
		"model." + model,
	}
	for _, res := range resolutions {
		step := StepMs(res)
		bucket := (tsMs / step) * step
		b := s.db.NewBatch()
		for _, metric := range metrics {
			if err := s.incrementInBatch(b, s.key(dataset, metric, res, bucket), 1); err != nil {
				b.Close()
				return err
			}
		}
		if err := s.db.CommitBatch(context.Background(), b); err != nil {
			b.Close()
			return err
		}
		b.Close()
	}
	return nil
}

// incrementInBatch does read-modify-write of an int64 counter stored as
// big-endian 8 bytes.
func (s *Store) incrementInBatch(b *pebble.Batch, key []byte, delta int64) error {
	cur, err := s.db.Get(key)
	if err != nil && !pebblestore.IsNotFound(err) {
		return err
	}
	var val int64
	if len(cur) == 8 {
		val = int64(binary.BigEndian.Uint64(cur))
	}
	val += delta
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(val))
	return b.Set(key, buf[:], nil)
}

// Point is one bucket of a metric series.
type Point struct {
	BucketMs int64 `json:"bucketMs"`
	Value    int64 `json:"value"`
}

// Range returns the buckets of one metric between fromMs and toMs inclusive,
// in time order. Missing buckets are absent, not zero-filled.
func (s *Store) Range(dataset, metric, res string, fromMs, toMs int64) ([]Point, error) {
	prefix := s.metricPrefix(dataset, metric, res)
	low := append(append([]byte{}, prefix...), '/')
	high := append(append([]byte{}, prefix...), '/', 0xFF)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Point
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		bucket, err := strconv.ParseInt(string(key[len(low):]), 10, 64)
		if err != nil {
			continue
		}
		if bucket < fromMs || (toMs > 0 && bucket > toMs) {
			continue
		}
		if v := iter.Value(); len(v) == 8 {
			out = append(out, Point{BucketMs: bucket, Value: int64(binary.BigEndian.Uint64(v))})
		}
	}
	return out, nil
}
