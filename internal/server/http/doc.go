// Package httpserver provides the JSON/HTTP gateway for Keel: the RPC
// endpoint, event queries, websocket and SSE live subscriptions, and the
// admin/consumption surface (tenants, checkpoint, archive, queue, analytics).
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":7070")
package httpserver
