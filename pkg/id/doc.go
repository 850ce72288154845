// Package id mints compact, time-ordered request identifiers.
//
// Keel stamps every mutation with a request id so change events, sink
// deliveries and logs can be correlated. When a caller does not supply one,
// the RPC layer mints it here.
//
// An ID packs a 48-bit millisecond timestamp and a 32-bit per-millisecond
// counter into 10 big-endian bytes, rendered as 16 characters of
// digits-first base32. Both the byte form and the string form sort in mint
// order, so request ids can be compared or range-scanned as plain strings.
//
// The Generator is safe for concurrent use and strictly increasing within a
// process: a clock regression pins ids to the last seen millisecond, and a
// counter that wraps within one millisecond waits for the clock to advance.
package id
