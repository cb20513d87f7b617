// Package filter decides which discovered resources may enter the
// dispatch queue. Filters run as an ordered chain that short-circuits
// on the first rejection, so cheap structural checks sit in front of
// ledger lookups.
package filter
