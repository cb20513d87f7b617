// Package ledger implements the known-resource ledger: the record of every
// identity the frontier has ever admitted, when it was last crawled, and
// when it becomes eligible for another crawl.
//
// # Contract
//
// All backends satisfy the Ledger interface. Admission follows one rule:
// an unknown identity is admissible; a known identity with recrawling
// disabled is never admissible again; otherwise it is admissible once its
// recrawl window has elapsed. LastCrawledAt is non-decreasing per identity
// even under concurrent writers, so duplicate completions converge instead
// of rewinding state.
//
// # Backends
//
//   - Memory: sharded in-process map for single-process deployments
//   - SQLite: single-file store, no external service required
//   - Redis: shared store for multi-process frontiers
//   - Postgres: the lineage-oriented store, keeping parent->child edges
//     alongside the records
//
// Design decision: Every backend keeps a next-eligible-time index rather
// than scanning all records for the due-for-recrawl query, because:
//  1. The ledger only grows; a linear scan gets slower for the lifetime
//     of the deployment
//  2. The recrawl janitor runs the query on a tight interval
//  3. The index is cheap to maintain at record time (one heap push, one
//     indexed column, one sorted-set member)
//
// The recrawl TTL is a ledger-level policy stamped onto each record when
// it is written, so operators can change the policy without rewriting
// history: the new TTL applies from each record's next write onward.
package ledger
