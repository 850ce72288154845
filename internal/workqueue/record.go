package workqueue

import (
	"encoding/binary"
	"hash/crc32"
)

// Message record: headerLen(4B BE) | header | payload | crc32c(header|payload)
// The header is the 8-byte big-endian enqueue timestamp in milliseconds.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeMessage frames a timestamped payload.
func EncodeMessage(tsMs int64, payload []byte) []byte {
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(tsMs))

	out := make([]byte, 0, 4+len(header)+len(payload)+4)
	var hb [4]byte
	binary.BigEndian.PutUint32(hb[:], uint32(len(header)))
	out = append(out, hb[:]...)
	out = append(out, header[:]...)
	out = append(out, payload...)
	crc := crc32.Update(0, castagnoli, header[:])
	crc = crc32.Update(crc, castagnoli, payload)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	out = append(out, cb[:]...)
	return out
}

// DecodedMessage is a verified message.
type DecodedMessage struct {
	TsMs    int64
	Payload []byte
}

// DecodeMessage verifies framing and checksum.
func DecodeMessage(b []byte) (DecodedMessage, bool) {
	if len(b) < 8 {
		return DecodedMessage{}, false
	}
	hlen := binary.BigEndian.Uint32(b[:4])
	if hlen != 8 || int(4+hlen+4) > len(b) {
		return DecodedMessage{}, false
	}
	headerEnd := 4 + int(hlen)
	header := b[4:headerEnd]
	payload := b[headerEnd : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return DecodedMessage{}, false
	}
	return DecodedMessage{
		TsMs:    int64(binary.BigEndian.Uint64(header)),
		Payload: append([]byte(nil), payload...),
	}, true
}
