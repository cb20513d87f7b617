// Package graph records the discovery structure of a crawl: which
// resource led to which. Every completed crawl emits one edge per
// reported child.
//
// Two sinks are provided. The Kafka sink streams edges as JSON messages
// for downstream consumers; the Neo4j sink merges them directly into a
// property graph. Both sit behind the Logger interface so the frontier
// treats graph logging as optional and fire-and-forget: a failing sink
// is logged and never blocks crawl progress.
package graph
