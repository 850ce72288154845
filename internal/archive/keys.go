package archive

import "encoding/binary"

var (
	tenantPfx  = []byte("t/")
	archiveSeg = []byte("/archive/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyMeta builds the log metadata key.
func KeyMeta(tenant, name string) []byte {
	k := make([]byte, 0, len(tenant)+len(name)+16)
	k = append(k, tenantPfx...)
	k = append(k, tenant...)
	k = append(k, archiveSeg...)
	k = append(k, name...)
	k = append(k, metaSuffix...)
	return k
}

// KeyEntry builds an entry key; the big-endian sequence keeps entries in
// append order under iteration.
func KeyEntry(tenant, name string, seq uint64) []byte {
	k := make([]byte, 0, len(tenant)+len(name)+24)
	k = append(k, tenantPfx...)
	k = append(k, tenant...)
	k = append(k, archiveSeg...)
	k = append(k, name...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// entryBounds returns the iteration range covering every entry of a log.
func entryBounds(tenant, name string) (low, high []byte) {
	low = KeyEntry(tenant, name, 0)
	high = append(KeyEntry(tenant, name, ^uint64(0)), 0x00)
	return low, high
}

// seqFromKey extracts the sequence from an entry key.
func seqFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
