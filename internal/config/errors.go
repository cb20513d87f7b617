package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoSchemes is returned when the scheme allow-list is empty.
	// An empty allow-list would reject every submitted reference.
	ErrNoSchemes = errors.New("no schemes configured: the frontier would admit nothing")

	// ErrInvalidPerAddressLimit is returned when the per-address dispatch
	// limit is not positive. A limit of zero would block every address
	// forever.
	ErrInvalidPerAddressLimit = errors.New("invalid per-address limit: must be positive")

	// ErrInvalidBatchSize is returned when the worker batch cap is not
	// positive. A cap of zero would hand workers empty batches only.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidLeaseTTL is returned when the dispatch lease TTL is not
	// positive. A zero TTL would expire leases before workers could report.
	ErrInvalidLeaseTTL = errors.New("invalid lease TTL: must be positive")

	// ErrInvalidRecrawlTTL is returned when recrawling is enabled with a
	// non-positive interval. Disable recrawl instead of setting a zero TTL.
	ErrInvalidRecrawlTTL = errors.New("invalid recrawl TTL: must be positive when recrawl is enabled")

	// ErrInvalidSubmitConcurrency is returned when the submit concurrency
	// is not positive.
	ErrInvalidSubmitConcurrency = errors.New("invalid submit concurrency: must be positive")

	// ErrUnknownLedgerBackend is returned when LedgerBackend names none of
	// memory, sqlite, redis, postgres.
	ErrUnknownLedgerBackend = errors.New("unknown ledger backend: must be memory, sqlite, redis, or postgres")

	// ErrMissingDataDir is returned when the sqlite backend is selected
	// without a data directory for its database file.
	ErrMissingDataDir = errors.New("sqlite ledger requires a data directory")

	// ErrMissingRedisAddr is returned when the redis backend is selected
	// without a server address.
	ErrMissingRedisAddr = errors.New("redis ledger requires a server address")

	// ErrMissingPostgresDSN is returned when the postgres backend is
	// selected without a connection string.
	ErrMissingPostgresDSN = errors.New("postgres ledger requires a DSN")

	// ErrInvalidListenAddr is returned when the worker API listen address
	// is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address: must not be empty")

	// ErrInvalidJanitorInterval is returned when the janitor interval is
	// not positive. The janitor reclaims expired leases; without it a
	// crashed worker would block its address until restart.
	ErrInvalidJanitorInterval = errors.New("invalid janitor interval: must be positive")

	// ErrInvalidResubmitLimit is returned when the per-tick recrawl
	// resubmission limit is negative. Zero disables resubmission.
	ErrInvalidResubmitLimit = errors.New("invalid resubmit limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at a
	// time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
