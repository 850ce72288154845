// Package jsonval models JSON documents as a closed set of value kinds with
// order-preserving objects.
//
// Standard library maps randomize key order, which breaks two properties the
// store depends on: documents render their fields in the order they were
// written, and change events serialize byte-identically on every call so that
// webhook signatures can be computed over the exact body. Object keeps members
// in insertion order and Encode renders any Value deterministically.
//
// Numbers are carried as json.Number to avoid float64 round-tripping of large
// integers.
package jsonval
