// Package main provides the entry point for the Squirrel CLI.
//
// Squirrel is a crawl frontier for structured-data web crawling. It
// tracks which resources are already known, decides what should be
// crawled next, and enforces per-address politeness for a fleet of
// fetch workers.
//
// Usage:
//
//	squirrel serve
//	squirrel stats --json
//
// See --help for all available options.
package main

// main is the entry point for Squirrel.
func main() {
	Execute()
}
