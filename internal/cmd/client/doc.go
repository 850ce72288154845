// Package client provides the `keel` command-line client.
//
// The CLI talks to the Keel HTTP API to perform common store operations
// from a terminal. It is primarily intended for developers and operators.
//
// Installation
//
//	go install github.com/keeldb/keel/cmd/keel@latest
//
// Or build from this repo and use the embedded `keel` binary.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from the KEEL_HTTP environment variable (default
// http://127.0.0.1:7070).
//
// Usage
//
//	keel tenant create --name acme
//	keel tenant list
//
//	keel call --tenant acme --method create \
//	    --params '{"model":"contact","data":{"name":"Ada"}}' \
//	    --user u-1
//
//	keel call --tenant acme --method list \
//	    --params '{"model":"contact","options":{"where":{"stage":"Lead"},"orderBy":"-name","limit":10}}'
//
//	# Read buffered change events, then follow live ones
//	keel events list --tenant acme --since 0 --limit 100
//	keel events tail --tenant acme --model contact --filter "operation == 'delete'"
//
//	# Consume sink output
//	keel archive read --tenant acme --log audit --limit 10
//	keel queue lease --tenant acme --queue jobs --consumer w1 --max 10
//	keel queue complete --tenant acme --queue jobs --consumer w1 --seq 3
//
// Notes
//
//   - call posts one {tenant, method, params} envelope to /v1/rpc and
//     prints the result. Method errors come back as an error envelope and
//     exit non-zero.
//   - events tail follows the server-sent event stream; use --limit to
//     stop after N events.
//   - queue lease reclaims expired leases before leasing, so abandoned
//     messages become deliverable again.
package client
