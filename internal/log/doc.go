// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Credential scrubbing for URIs and connection strings
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Session identifiers and authentication tokens
//   - Credentials embedded in URIs and backend DSNs
//
// A crawler logs URIs and store connection strings on nearly every line,
// so those are not masked wholesale: only the credential part of a
// userinfo component is redacted, keeping the rest of the value readable.
//
//	logger.Info("ledger connected",
//	    "dsn", "postgres://crawler:hunter2@db:5432/squirrel",
//	    // logged as postgres://crawler:***REDACTED***@db:5432/squirrel
//	)
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("request sent",
//	    "cookie", "session=abc123",  // Will be sanitized
//	    "uri", "http://example.org/data.ttl",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
