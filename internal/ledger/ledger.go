package ledger

import (
	"context"
	"time"
)

// Child is one lineage entry: an identity discovered by crawling its
// parent, with the moment of discovery.
type Child struct {
	// URI is the canonical identity of the discovered resource.
	URI string `json:"uri"`

	// DiscoveredAt is when the parent's crawl reported this child.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// KnownResource is the persisted state for one identity.
type KnownResource struct {
	// URI is the canonical identity.
	URI string `json:"uri"`

	// LastCrawledAt is the most recent completed crawl. Non-decreasing
	// across updates for the same identity.
	LastCrawledAt time.Time `json:"last_crawled_at"`

	// RecrawlTTL is the minimum time after LastCrawledAt before the
	// identity becomes admissible again. Negative means recrawling is
	// disabled: once recorded, the identity is permanently excluded.
	RecrawlTTL time.Duration `json:"recrawl_ttl"`

	// Children holds the lineage set on backends that keep it.
	Children []Child `json:"children,omitempty"`
}

// Ledger records crawled identities and answers admission checks.
//
// Implementations must make Record atomic with respect to concurrent
// IsAdmissible calls for the same identity: two callers racing a
// check-then-act admission against a completion must converge on one
// counted record whose LastCrawledAt is the later of the two writes.
type Ledger interface {
	// IsAdmissible reports whether the identity may enter the queue:
	// true when unknown, false forever once recorded with recrawling
	// disabled, otherwise true once the recrawl window has elapsed.
	IsAdmissible(ctx context.Context, uri string) (bool, error)

	// Record upserts the record for uri with the given crawl time and,
	// on lineage-capable backends, merges the discovered children.
	// Backends without lineage ignore children.
	Record(ctx context.Context, uri string, crawledAt time.Time, children []Child) error

	// Count returns the number of distinct known identities.
	Count(ctx context.Context) (int64, error)

	// DueForRecrawl walks identities whose recrawl window elapsed at or
	// before now, in next-eligible order, calling visit for each until
	// visit returns false or the walk ends. Each call re-reads current
	// state, so the walk is restartable.
	DueForRecrawl(ctx context.Context, now time.Time, visit func(uri string) bool) error

	// Lineage reports whether this backend persists children.
	Lineage() bool

	// Close releases the backing store.
	Close() error
}

// Options configures a ledger backend.
type Options struct {
	// RecrawlTTL is the window stamped onto records at write time.
	// Negative disables recrawling entirely.
	RecrawlTTL time.Duration

	// Lineage enables parent->child storage on backends that support it.
	Lineage bool

	// Clock overrides the time source for admission checks. Nil means
	// time.Now. Tests use this to step through recrawl windows.
	Clock func() time.Time

	// CreateIfNotExists creates the SQLite database file and directory
	// when missing. Ignored by other backends.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging on the SQLite backend for
	// better concurrent read performance. Ignored by other backends.
	EnableWAL bool
}

// DefaultOptions returns the default ledger options: recrawling disabled,
// no lineage, SQLite files created on demand with WAL enabled.
func DefaultOptions() Options {
	return Options{
		RecrawlTTL:        -1,
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// clock returns the configured time source or the wall clock.
func (o Options) clock() func() time.Time {
	if o.Clock != nil {
		return o.Clock
	}
	return time.Now
}

// eligibleAt returns when a record crawled at last becomes admissible
// again. ok is false when the TTL disables recrawling.
func eligibleAt(last time.Time, ttl time.Duration) (time.Time, bool) {
	if ttl < 0 {
		return time.Time{}, false
	}
	return last.Add(ttl), true
}

// mergeChildren unions incoming lineage entries into existing ones,
// keeping the first recorded discovery time per child.
func mergeChildren(existing, incoming []Child) []Child {
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c.URI] = struct{}{}
	}
	for _, c := range incoming {
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		existing = append(existing, c)
	}
	return existing
}
