// Package serverrun starts the Keel runtime and HTTP server from resolved
// options and blocks until the context is canceled, closing the runtime with
// a bounded timeout on the way out. The CLI resolves config and flags and
// hands the result to Run.
//
//	opts := serverrun.Options{HTTPAddr: ":7070", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()}
//	err := serverrun.Run(ctx, opts)
package serverrun
