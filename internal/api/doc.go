// Package api exposes the crawl frontier to workers over JSON HTTP.
//
// Workers are external fetch processes, possibly written in other
// languages, so the surface is a small set of versioned JSON endpoints
// rather than an in-process Go API:
//
//   - POST /api/v1/submit     submit discovered references
//   - POST /api/v1/batch      claim the next batch of dispatchable work
//   - POST /api/v1/completion report a finished crawl and its children
//   - GET  /api/v1/status     queue and ledger figures
//   - GET  /healthz           liveness probe
//
// The server binds synchronously, serves in the background, and shuts
// down gracefully when its context is cancelled.
package api
