package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/CatherineChiramel/Squirrel/internal/ledger"
)

// Stats is a point-in-time summary of the known-resource ledger.
type Stats struct {
	// Backend is the ledger backend name (memory, sqlite, redis, postgres).
	Backend string `json:"backend"`

	// Known is the number of distinct identities the ledger has recorded.
	Known int64 `json:"known_resources"`

	// Due is the number of known identities whose recrawl window has
	// elapsed. Always zero when recrawling is disabled.
	Due int `json:"due_for_recrawl"`

	// Recrawl reports whether known identities become admissible again.
	Recrawl bool `json:"recrawl"`

	// RecrawlTTL is the recrawl window in nanoseconds. Only meaningful
	// when Recrawl is true.
	RecrawlTTL time.Duration `json:"recrawl_ttl,omitempty"`

	// GeneratedAt is when this summary was collected.
	GeneratedAt time.Time `json:"generated_at"`
}

// PolicyString renders the recrawl policy for human-readable output.
func (s *Stats) PolicyString() string {
	if !s.Recrawl {
		return "never"
	}
	return "every " + s.RecrawlTTL.String()
}

// CollectOptions describe the ledger being summarized.
type CollectOptions struct {
	// Backend is the configured backend name, echoed into the stats.
	Backend string

	// Recrawl and RecrawlTTL describe the configured recrawl policy.
	Recrawl    bool
	RecrawlTTL time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Collect builds a Stats snapshot from the ledger.
func Collect(ctx context.Context, led ledger.Ledger, opts CollectOptions) (*Stats, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	now := opts.Clock()

	known, err := led.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: count known resources: %w", err)
	}

	due := 0
	if err := led.DueForRecrawl(ctx, now, func(string) bool {
		due++
		return true
	}); err != nil {
		return nil, fmt.Errorf("report: walk due resources: %w", err)
	}

	return &Stats{
		Backend:     opts.Backend,
		Known:       known,
		Due:         due,
		Recrawl:     opts.Recrawl,
		RecrawlTTL:  opts.RecrawlTTL,
		GeneratedAt: now,
	}, nil
}

// Writer defines the interface for stats output.
// Implementations write the ledger summary in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the stats to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(stats *Stats) (int, error)
}

// baseWriter provides common functionality for stats writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
