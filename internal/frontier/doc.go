// Package frontier orchestrates the crawl loop: intake of discovered
// references, dispatch of eligible work to callers, and the completion
// callback that closes the cycle.
//
// # Resource lifecycle
//
// Discovered -> Classified -> Rejected or Queued -> Dispatched ->
// Completed. Completion records the identity in the ledger, frees its
// network address, feeds discovered children back through intake, and
// optionally emits discovery edges to the graph logger.
//
// # Queue capabilities
//
// The frontier drives any Queue. Queues that additionally implement
// AddressPoliteness get completion-side address management and lease
// verification; the capability is asserted once at construction, never
// per call. Without it, completions still reach the ledger but dispatch
// misuse cannot be detected.
//
// Design decision: Completion records the ledger before consuming the
// dispatch lease because:
//  1. A ledger write failure then leaves the lease in place, so the
//     lease expiry re-queues the resource instead of losing the crawl
//  2. Consuming the lease first would release the address while the
//     identity is still admissible, letting a racing discovery dispatch
//     it a second time
package frontier
