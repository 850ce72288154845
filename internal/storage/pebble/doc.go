// Package pebblestore wraps Pebble behind the durability policy shared by
// every Keel subsystem. One DB holds all tenants: document checkpoints,
// archive logs, work queues, analytics counters and tenant metadata each
// claim a keyspace prefix under t/{tenant}/ and commit through the same
// fsync mode (always, interval group-commit, or never).
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: dir,
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//
// Multi-key updates go through NewBatch/CommitBatch so a sequence bump and
// its payload land atomically. Point helpers (Get, Set, SetJSON, GetJSON)
// exist for metadata-sized records; IsNotFound distinguishes missing keys
// from engine failures.
package pebblestore
