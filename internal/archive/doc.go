// Package archive provides durable, append-only event logs backed by the
// shared storage engine. Forward-store sinks append each change event to a
// named log; the in-memory event buffer is bounded and volatile, so archives
// are the durable half of the capture pipeline.
//
// # Keyspace
//
// Keys are byte-wise lexicographically sortable:
//
//	t/{tenant}/archive/{log}/m            last assigned sequence (BE8)
//	t/{tenant}/archive/{log}/e/{seq_be8}  framed record
//
// # Records
//
// Each record frames an 8-byte big-endian timestamp header and the event
// payload with a CRC-32C trailer: varint headerLen | header | payload | crc.
// Corrupt records are skipped on read rather than failing the scan.
package archive
