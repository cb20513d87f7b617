// Package report summarizes the known-resource ledger for operators.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown for documentation
//
// Design decision: We separate stats collection (Collect, which walks the
// ledger) from stats rendering (the writers) so that new output formats
// can be added without touching the ledger, and so the writers can be
// tested without a ledger at all.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably.
package report
