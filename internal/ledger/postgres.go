package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // pgx database/sql driver
	"github.com/jmoiron/sqlx"
)

// Postgres is the lineage-oriented ledger backend: alongside the known
// records it keeps the parent->child discovery edges for provenance
// queries across the whole crawl history.
type Postgres struct {
	db *sqlx.DB

	ttl     time.Duration
	lineage bool
	clock   func() time.Time
}

// NewPostgres connects to the database behind dsn and ensures the ledger
// schema exists.
func NewPostgres(dsn string, opts Options) (*Postgres, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	p := &Postgres{
		db:      db,
		ttl:     opts.RecrawlTTL,
		lineage: opts.Lineage,
		clock:   opts.clock(),
	}
	if err := p.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return p, nil
}

// createTables creates the ledger schema if it doesn't exist.
func (p *Postgres) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS known_resources (
		uri TEXT PRIMARY KEY,
		last_crawled_at TIMESTAMPTZ NOT NULL,
		recrawl_ttl_ns BIGINT,
		next_eligible_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_known_resources_next_eligible
		ON known_resources (next_eligible_at);

	CREATE TABLE IF NOT EXISTS resource_links (
		parent TEXT NOT NULL,
		child TEXT NOT NULL,
		discovered_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (parent, child)
	);

	CREATE INDEX IF NOT EXISTS idx_resource_links_parent
		ON resource_links (parent);
	`

	_, err := p.db.Exec(schema)
	return err
}

// IsAdmissible implements Ledger.
func (p *Postgres) IsAdmissible(ctx context.Context, uri string) (bool, error) {
	var next sql.NullTime
	err := p.db.QueryRowContext(ctx,
		"SELECT next_eligible_at FROM known_resources WHERE uri = $1", uri,
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
	return !p.clock().Before(next.Time), nil
}

// Record implements Ledger. GREATEST keeps last_crawled_at monotonic when
// two completions for the same identity race, and the next-eligible time
// is recomputed from the merged value inside the same statement.
func (p *Postgres) Record(ctx context.Context, uri string, crawledAt time.Time, children []Child) error {
	var ttlNS sql.NullInt64
	var next sql.NullTime
	if p.ttl >= 0 {
		ttlNS = sql.NullInt64{Int64: int64(p.ttl), Valid: true}
		next = sql.NullTime{Time: crawledAt.Add(p.ttl), Valid: true}
	}

	query := `
	INSERT INTO known_resources (uri, last_crawled_at, recrawl_ttl_ns, next_eligible_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (uri) DO UPDATE SET
		last_crawled_at = GREATEST(known_resources.last_crawled_at, EXCLUDED.last_crawled_at),
		recrawl_ttl_ns = EXCLUDED.recrawl_ttl_ns,
		next_eligible_at = CASE
			WHEN EXCLUDED.next_eligible_at IS NULL THEN NULL
			ELSE GREATEST(known_resources.last_crawled_at, EXCLUDED.last_crawled_at)
				+ (EXCLUDED.recrawl_ttl_ns::BIGINT * INTERVAL '1 nanosecond')
		END
	`

	if !p.lineage || len(children) == 0 {
		if _, err := p.db.ExecContext(ctx, query, uri, crawledAt, ttlNS, next); err != nil {
			return fmt.Errorf("failed to record known resource: %w", err)
		}
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, uri, crawledAt, ttlNS, next); err != nil {
		return fmt.Errorf("failed to record known resource: %w", err)
	}

	linkQuery := `
	INSERT INTO resource_links (parent, child, discovered_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (parent, child) DO NOTHING
	`
	for _, c := range children {
		if _, err := tx.ExecContext(ctx, linkQuery, uri, c.URI, c.DiscoveredAt); err != nil {
			return fmt.Errorf("failed to record lineage edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// Count implements Ledger.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_resources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count known resources: %w", err)
	}
	return count, nil
}

// DueForRecrawl implements Ledger.
func (p *Postgres) DueForRecrawl(ctx context.Context, now time.Time, visit func(uri string) bool) error {
	rows, err := p.db.QueryContext(ctx, `
	SELECT uri FROM known_resources
	WHERE next_eligible_at IS NOT NULL AND next_eligible_at <= $1
	ORDER BY next_eligible_at ASC
	`, now)
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
// discovery time.
func (p *Postgres) Children(ctx context.Context, parent string) ([]Child, error) {
	rows, err := p.db.QueryContext(ctx, `
	SELECT child, discovered_at FROM resource_links
	WHERE parent = $1
	ORDER BY discovered_at ASC, child ASC
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var children []Child
	for rows.Next() {
		var c Child
		if err := rows.Scan(&c.URI, &c.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to walk lineage: %w", err)
	}
	return children, nil
}

// Lineage implements Ledger.
func (p *Postgres) Lineage() bool {
	return p.lineage
}

// Close implements Ledger.
func (p *Postgres) Close() error {
	return p.db.Close()
}
