package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/keeldb/keel/internal/changelog"
	"github.com/keeldb/keel/internal/document"
	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/schema"
	"github.com/keeldb/keel/internal/sinks"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/pkg/log"
)

// Persisted keys per tenant. The checkpoint is a full snapshot: collections
// (tombstones included), last sequence, schema and sink config, written in
// one batch.
func keySchema(tenant string) []byte     { return []byte("t/" + tenant + "/schema") }
func keySeq(tenant string) []byte        { return []byte("t/" + tenant + "/seq") }
func keySinks(tenant string) []byte      { return []byte("t/" + tenant + "/sinks") }
func keyCheckpoint(tenant string) []byte { return []byte("t/" + tenant + "/checkpoint") }

// hydrate loads persisted state. The event buffer starts empty with the
// sequence counter resumed from the persisted value, so numbering continues
// where the previous run stopped.
func (s *Store) hydrate(capacity int) error {
	var lastSeq uint64
	raw, err := s.db.Get(keySeq(s.tenant))
	switch {
	case err == nil:
		if len(raw) != 8 {
			return fmt.Errorf("sequence key is %d bytes, expected 8", len(raw))
		}
		lastSeq = binary.BigEndian.Uint64(raw)
	case pebblestore.IsNotFound(err):
	default:
		return fmt.Errorf("read sequence: %w", err)
	}
	s.log = changelog.NewLog(capacity, lastSeq)

	raw, err = s.db.Get(keySchema(s.tenant))
	switch {
	case err == nil:
		obj, err := jsonval.DecodeObject(raw)
		if err != nil {
			return fmt.Errorf("decode schema: %w", err)
		}
		sch, warnings, err := schema.Parse(obj)
		if err != nil {
			return fmt.Errorf("parse schema: %w", err)
		}
		for _, w := range warnings {
			s.logger.Warn("schema relation target missing", log.Str("detail", w.String()))
		}
		s.schema = sch
	case pebblestore.IsNotFound(err):
	default:
		return fmt.Errorf("read schema: %w", err)
	}

	var configs []sinks.Config
	err = s.db.GetJSON(keySinks(s.tenant), &configs)
	switch {
	case err == nil:
		s.sinkConfigs = configs
	case pebblestore.IsNotFound(err):
	default:
		return fmt.Errorf("read sinks: %w", err)
	}

	raw, err = s.db.Get(keyCheckpoint(s.tenant))
	switch {
	case err == nil:
		if err := s.loadSnapshot(raw); err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
	case pebblestore.IsNotFound(err):
	default:
		return fmt.Errorf("read checkpoint: %w", err)
	}
	return nil
}

func (s *Store) loadSnapshot(raw []byte) error {
	obj, err := jsonval.DecodeObject(raw)
	if err != nil {
		return err
	}
	var loadErr error
	obj.Range(func(model string, v jsonval.Value) bool {
		arr, ok := v.(*jsonval.Array)
		if !ok {
			loadErr = fmt.Errorf("model %s snapshot is %s, expected array", model, v.Kind())
			return false
		}
		c := document.NewCollection()
		for _, elem := range arr.Elems {
			do, ok := elem.(*jsonval.Object)
			if !ok {
				loadErr = fmt.Errorf("model %s snapshot entry is %s, expected object", model, elem.Kind())
				return false
			}
			doc, err := document.FromValue(do)
			if err != nil {
				loadErr = fmt.Errorf("model %s: %w", model, err)
				return false
			}
			c.Put(doc)
		}
		s.collections[model] = c
		return true
	})
	return loadErr
}

// snapshotLocked serializes every collection, tombstones included, with
// models in sorted order for stable bytes.
func (s *Store) snapshotLocked() []byte {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := jsonval.NewObject()
	for _, name := range names {
		arr := jsonval.NewArray()
		for _, doc := range s.collections[name].All() {
			arr.Append(doc.Value())
		}
		out.Set(name, arr)
	}
	return jsonval.Encode(out)
}

// Checkpoint writes the full snapshot now if there is anything unflushed.
func (s *Store) Checkpoint(ctx context.Context) error {
	return s.checkpoint(ctx)
}

// checkpoint writes collections, sequence, schema and sink config in one
// batch. The dirty flag clears only when no mutation landed while the batch
// was in flight, so nothing is ever lost to a race.
func (s *Store) checkpoint(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	snapshot := s.snapshotLocked()
	schemaRaw := jsonval.Encode(s.schema.Raw())
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, s.log.LastSequence())
	sinksRaw, err := json.Marshal(s.sinkConfigs)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode sinks: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyCheckpoint(s.tenant), snapshot, nil); err != nil {
		return err
	}
	if err := b.Set(keySeq(s.tenant), seq, nil); err != nil {
		return err
	}
	if err := b.Set(keySchema(s.tenant), schemaRaw, nil); err != nil {
		return err
	}
	if err := b.Set(keySinks(s.tenant), sinksRaw, nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.dirty = false
	}
	s.mu.Unlock()

	s.logger.Debug("checkpoint written",
		log.Uint64("sequence", binary.BigEndian.Uint64(seq)),
		log.Int("bytes", len(snapshot)))
	return nil
}

// checkpointLoop flushes on mutation kicks and on a safety-net ticker.
func (s *Store) checkpointLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ckptKick:
		case <-ticker.C:
		}
		if err := s.checkpoint(context.Background()); err != nil {
			s.logger.Error("checkpoint failed", log.Err(err))
		}
	}
}
