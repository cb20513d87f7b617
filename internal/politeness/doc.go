// Package politeness implements the frontier's dispatch queue: admitted
// resources wait here until their network address is free, and no two
// in-flight resources ever share an address beyond the configured
// per-address limit.
//
// # State machine
//
// Per address: Free -> Blocked -> Free. Per resource: Queued ->
// Dispatched -> completed (externally) -> released. Dequeueing a batch
// blocks every address the batch uses; completing a resource frees its
// address again.
//
// # Dispatch leases
//
// Every dispatched resource holds a lease with an expiry. A worker that
// crashes without reporting completion would otherwise block its address
// forever; when a lease expires the address is force-released and the
// resource returns to the tail of the queue. Leases double as duplicate
// completion detection: the second completion for an identity finds no
// lease and is rejected by the caller.
//
// Design decision: The queue uses one mutex rather than per-address locks
// because:
//  1. Batch selection reads the pending list and every address counter
//     together; a consistent snapshot under sharded locks would need lock
//     ordering across shards
//  2. Dequeue work is O(pending) map-and-slice traversal with no I/O, so
//     the critical section is short
//  3. Contention is bounded by worker count, not by frontier size
package politeness
