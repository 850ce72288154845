// Package runtime wires storage, config, and the per-tenant store registry
// into a single-node Keel instance. It exposes Open/Close, basic health
// checks, and lazy tenant store resolution for the API layers.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close(context.Background())
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Resolve a tenant store and create a document
//	st, _ := rt.Store("default")
//	doc, _ := st.Create(context.Background(), "contact", fields, store.Actor{})
package runtime
