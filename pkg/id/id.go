package id

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

// ID is an 80-bit, time-ordered request identifier: 6 bytes of millisecond
// timestamp followed by a 4-byte per-millisecond counter, both big-endian.
// Byte-wise and string-wise comparison both preserve mint order.
type ID [10]byte

// encoding is base32 with a digits-first alphabet, so the string form sorts
// the same way the raw bytes do. 10 bytes encode to exactly 16 characters.
var encoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// String returns the 16-character encoded form.
func (i ID) String() string { return encoding.EncodeToString(i[:]) }

// Time returns the mint time at millisecond precision.
func (i ID) Time() time.Time {
	var ts [8]byte
	copy(ts[2:], i[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(ts[:])))
}

// Compare returns -1, 0, 1 ordering ids by mint time, then counter.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Parse decodes the 16-character form produced by String.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != encoding.EncodedLen(len(id)) {
		return ID{}, fmt.Errorf("id: bad length %d", len(s))
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("id: %w", err)
	}
	copy(id[:], b)
	return id, nil
}

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator produces strictly increasing IDs per process.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	count  uint32
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// Next returns a new ID. A clock regression pins the timestamp to the last
// seen millisecond; counter exhaustion within one millisecond waits for the
// clock to move.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := NowMs()
	if now < g.lastMs {
		now = g.lastMs
	}
	switch {
	case now > g.lastMs:
		g.lastMs, g.count = now, 0
	case g.count < math.MaxUint32:
		g.count++
	default:
		for now <= g.lastMs {
			time.Sleep(50 * time.Microsecond)
			now = NowMs()
		}
		g.lastMs, g.count = now, 0
	}
	return makeID(g.lastMs, g.count)
}

func makeID(ms int64, count uint32) ID {
	var id ID
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ms))
	copy(id[:6], ts[2:])
	binary.BigEndian.PutUint32(id[6:], count)
	return id
}
