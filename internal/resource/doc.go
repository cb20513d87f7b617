// Package resource defines the unit of work handled by the frontier: a
// discovered reference turned into a canonical identity, resolved to a
// network address, and tagged with a coarse type.
//
// # Identity
//
// Two resources are the same resource exactly when their canonical URI
// strings are equal. Normalization is deliberately conservative: it fixes
// case and encoding differences that never change what a URI names
// (scheme/host case, IDN encoding, default ports, empty path) and nothing
// else. Query parameters are not reordered and percent-encoding is left
// untouched, because both can be significant to the origin server.
//
// Design decision: The fragment is part of the identity and is NOT
// stripped. Linked-data vocabularies distinguish hash IRIs such as
// http://example.org/ontology#Person from the containing document, so
// dropping the fragment would collapse distinct resources into one.
//
// # Components
//
//   - Resource: the work item carried through admission, dispatch, and
//     completion
//   - Normalize: canonical identity construction
//   - Resolve: network address resolution via an injectable Resolver
//   - Classify: advisory type tagging from the URI shape alone
//   - Tokens: deterministic structural token extraction for scoring
package resource
