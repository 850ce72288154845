package workqueue

import "encoding/binary"

var (
	tenantPfx  = []byte("t/")
	queueSeg   = []byte("/queue/")
	metaSuffix = []byte("/m")
	msgSeg     = []byte("/msg/")
	availSeg   = []byte("/avail/")
	leaseSeg   = []byte("/lease/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func queueKey(tenant, name string, seg []byte, seq uint64) []byte {
	k := make([]byte, 0, len(tenant)+len(name)+len(seg)+24)
	k = append(k, tenantPfx...)
	k = append(k, tenant...)
	k = append(k, queueSeg...)
	k = append(k, name...)
	k = append(k, seg...)
	k = appendBE8(k, seq)
	return k
}

// KeyMeta builds the queue metadata key.
func KeyMeta(tenant, name string) []byte {
	k := make([]byte, 0, len(tenant)+len(name)+16)
	k = append(k, tenantPfx...)
	k = append(k, tenant...)
	k = append(k, queueSeg...)
	k = append(k, name...)
	k = append(k, metaSuffix...)
	return k
}

// KeyMsg builds a message key.
func KeyMsg(tenant, name string, seq uint64) []byte { return queueKey(tenant, name, msgSeg, seq) }

// KeyAvail builds an availability marker key.
func KeyAvail(tenant, name string, seq uint64) []byte { return queueKey(tenant, name, availSeg, seq) }

// KeyLease builds a lease key.
func KeyLease(tenant, name string, seq uint64) []byte { return queueKey(tenant, name, leaseSeg, seq) }

// segBounds returns the iteration range covering one key segment of a queue.
func segBounds(tenant, name string, seg []byte) (low, high []byte) {
	low = queueKey(tenant, name, seg, 0)
	high = append(queueKey(tenant, name, seg, ^uint64(0)), 0x00)
	return low, high
}

// seqFromKey extracts the sequence from a queue key.
func seqFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
