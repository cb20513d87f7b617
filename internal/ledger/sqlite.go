package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// sqliteFileName is the ledger database file inside the data directory.
const sqliteFileName = "squirrel.db"

// SQLite is the single-file ledger backend. It needs no external service,
// which makes it the default for single-host deployments that must survive
// restarts.
//
// Design decision: We use modernc.org/sqlite (CGO-free) and store all
// timestamps as Unix nanoseconds in INTEGER columns, because:
//  1. MAX() over integers gives monotonic last-crawled merging directly
//     in the upsert, with no timestamp format parsing
//  2. The next-eligible index is a plain integer comparison
//  3. Cross-compilation stays trivial
type SQLite struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	ttl     time.Duration
	lineage bool
	clock   func() time.Time
}

// OpenSQLite opens or creates the ledger database inside dbDir.
// With CreateIfNotExists the directory and file are created on demand;
// without it a missing database is an error.
func OpenSQLite(dbDir string, opts Options) (*SQLite, error) {
	dbPath := filepath.Join(dbDir, sqliteFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("ledger database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check ledger database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	// modernc.org/sqlite connection strings: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{
		db:      db,
		dbPath:  dbPath,
		ttl:     opts.RecrawlTTL,
		lineage: opts.Lineage,
		clock:   opts.clock(),
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	return s, nil
}

// createTables creates the ledger schema if it doesn't exist.
func (s *SQLite) createTables() error {
	schema := `
	-- Known resources: one row per identity the frontier ever completed.
	-- next_eligible_ns is NULL when recrawling is disabled for the row.
	CREATE TABLE IF NOT EXISTS known_resources (
		uri TEXT PRIMARY KEY,
		last_crawled_ns INTEGER NOT NULL,
		recrawl_ttl_ns INTEGER,
		next_eligible_ns INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_known_next_eligible ON known_resources(next_eligible_ns);

	-- Lineage edges: which crawl discovered which identity.
	CREATE TABLE IF NOT EXISTS resource_links (
		parent TEXT NOT NULL,
		child TEXT NOT NULL,
		discovered_ns INTEGER NOT NULL,
		PRIMARY KEY (parent, child)
	);

	CREATE INDEX IF NOT EXISTS idx_links_parent ON resource_links(parent);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// IsAdmissible implements Ledger.
func (s *SQLite) IsAdmissible(ctx context.Context, uri string) (bool, error) {
	var next sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT next_eligible_ns FROM known_resources WHERE uri = ?", uri,
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query known resource: %w", err)
	}
	if !next.Valid {
		return false, nil
	}
	return s.clock().UnixNano() >= next.Int64, nil
}

// Record implements Ledger. The upsert keeps last_crawled_ns monotonic by
// taking the MAX of the stored and incoming values, and recomputes the
// next-eligible time from that merged value.
func (s *SQLite) Record(ctx context.Context, uri string, crawledAt time.Time, children []Child) error {
	crawledNS := crawledAt.UnixNano()

	var ttlNS, nextNS sql.NullInt64
	if s.ttl >= 0 {
		ttlNS = sql.NullInt64{Int64: int64(s.ttl), Valid: true}
		nextNS = sql.NullInt64{Int64: crawledNS + int64(s.ttl), Valid: true}
	}

	query := `
	INSERT INTO known_resources (uri, last_crawled_ns, recrawl_ttl_ns, next_eligible_ns)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(uri) DO UPDATE SET
		last_crawled_ns = MAX(last_crawled_ns, excluded.last_crawled_ns),
		recrawl_ttl_ns = excluded.recrawl_ttl_ns,
		next_eligible_ns = CASE
			WHEN excluded.next_eligible_ns IS NULL THEN NULL
			ELSE MAX(last_crawled_ns, excluded.last_crawled_ns) + excluded.recrawl_ttl_ns
		END
	`

	if !s.lineage || len(children) == 0 {
		if _, err := s.db.ExecContext(ctx, query, uri, crawledNS, ttlNS, nextNS); err != nil {
			return fmt.Errorf("failed to record known resource: %w", err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, uri, crawledNS, ttlNS, nextNS); err != nil {
		return fmt.Errorf("failed to record known resource: %w", err)
	}

	linkQuery := `
	INSERT INTO resource_links (parent, child, discovered_ns)
	VALUES (?, ?, ?)
	ON CONFLICT(parent, child) DO NOTHING
	`
	for _, c := range children {
		if _, err := tx.ExecContext(ctx, linkQuery, uri, c.URI, c.DiscoveredAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to record lineage edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// Count implements Ledger.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_resources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count known resources: %w", err)
	}
	return count, nil
}

// DueForRecrawl implements Ledger. The query walks the next-eligible index
// in order, so the cost is proportional to the due set, not the ledger.
func (s *SQLite) DueForRecrawl(ctx context.Context, now time.Time, visit func(uri string) bool) error {
	rows, err := s.db.QueryContext(ctx, `
	SELECT uri FROM known_resources
	WHERE next_eligible_ns IS NOT NULL AND next_eligible_ns <= ?
	ORDER BY next_eligible_ns ASC
	`, now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to query due resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return fmt.Errorf("failed to scan due resource: %w", err)
		}
		if !visit(uri) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to walk due resources: %w", err)
	}
	return nil
}

// Children returns the recorded lineage for a parent identity, ordered by
// discovery time. Used by provenance queries, not by scheduling.
func (s *SQLite) Children(ctx context.Context, parent string) ([]Child, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT child, discovered_ns FROM resource_links
	WHERE parent = ?
	ORDER BY discovered_ns ASC, child ASC
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var children []Child
	for rows.Next() {
		var c Child
		var discoveredNS int64
		if err := rows.Scan(&c.URI, &discoveredNS); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		c.DiscoveredAt = time.Unix(0, discoveredNS).UTC()
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to walk lineage: %w", err)
	}
	return children, nil
}

// Lineage implements Ledger.
func (s *SQLite) Lineage() bool {
	return s.lineage
}

// Close implements Ledger.
func (s *SQLite) Close() error {
	return s.db.Close()
}
