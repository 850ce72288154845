package changelog

// DefaultCapacity is the retained-event bound for a store's log.
const DefaultCapacity = 10000

// Log is a bounded FIFO of the most recent events with monotonic sequence
// assignment. Retained events always cover a contiguous sequence range, so
// lookups by sequence are index arithmetic, not scans.
//
// Log is not safe for concurrent use; the owning store serializes access.
type Log struct {
	capacity int
	ring     []*Event
	start    int
	size     int
	lastSeq  uint64
}

// NewLog creates a log that retains up to capacity events and hands out
// sequences starting at lastSeq+1. After a restart lastSeq is the persisted
// sequence; the buffer starts empty either way.
func NewLog(capacity int, lastSeq uint64) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		ring:     make([]*Event, capacity),
		lastSeq:  lastSeq,
	}
}

// Append assigns the next sequence to e and retains it, evicting the oldest
// event once the capacity is reached. Eviction never renumbers survivors.
func (l *Log) Append(e *Event) uint64 {
	l.lastSeq++
	e.Sequence = l.lastSeq
	if l.size == l.capacity {
		l.ring[l.start] = e
		l.start = (l.start + 1) % l.capacity
		return e.Sequence
	}
	l.ring[(l.start+l.size)%l.capacity] = e
	l.size++
	return e.Sequence
}

// LastSequence returns the most recently assigned sequence.
func (l *Log) LastSequence() uint64 { return l.lastSeq }

// Len returns the number of retained events.
func (l *Log) Len() int { return l.size }

// OldestSequence returns the sequence of the oldest retained event, or 0
// when the buffer is empty.
func (l *Log) OldestSequence() uint64 {
	if l.size == 0 {
		return 0
	}
	return l.ring[l.start].Sequence
}

// Since returns retained events with sequence > since in order, optionally
// filtered by model, capped at limit when limit > 0. Sequences that were
// evicted are silently absent.
func (l *Log) Since(since uint64, limit int, model string) []*Event {
	if l.size == 0 {
		return nil
	}
	oldest := l.ring[l.start].Sequence
	idx := 0
	if since >= oldest {
		idx = int(since - oldest + 1)
	}
	if idx >= l.size {
		return nil
	}

	var out []*Event
	for i := idx; i < l.size; i++ {
		e := l.ring[(l.start+i)%l.capacity]
		if model != "" && e.Model != model {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
