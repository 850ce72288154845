// Package workqueue provides durable lease-based delivery queues. Queue
// sinks enqueue change events; consumers lease batches, process them, and
// complete the sequences they handled. Leases that expire are reclaimed and
// the messages become available again, so delivery is at-least-once.
//
// # Keyspace
//
//	t/{tenant}/queue/{name}/m               last assigned sequence (BE8)
//	t/{tenant}/queue/{name}/msg/{seq_be8}   framed message
//	t/{tenant}/queue/{name}/avail/{seq_be8} delivery count (BE4), ready to lease
//	t/{tenant}/queue/{name}/lease/{seq_be8} active lease (JSON)
//
// A message is available when its avail marker exists and leased when a
// lease record exists; completion removes both the message and its lease.
package workqueue
