package frontier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CatherineChiramel/Squirrel/internal/filter"
	"github.com/CatherineChiramel/Squirrel/internal/graph"
	"github.com/CatherineChiramel/Squirrel/internal/ledger"
	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

// DefaultSubmitConcurrency bounds parallel intake work. Resolution is
// the slow step; one goroutine per reference with no cap would hammer
// the resolver on large discovery batches.
const DefaultSubmitConcurrency = 8

// Queue is the dispatch capability every frontier needs.
type Queue interface {
	Enqueue(res *resource.Resource) error
	DequeueBatch(maxSize int) []*resource.Resource
	PendingCount() int
}

// AddressPoliteness is the optional capability of queues that track
// per-address dispatch state through leases. Completing an identity
// both consumes its lease and frees its address.
type AddressPoliteness interface {
	Leased(uri string) (netip.Addr, bool)
	Complete(uri string) (netip.Addr, bool)
	ReclaimExpired() int
	BlockedAddressCount() int
	InFlightCount() int
}

// Options configures a Frontier. Queue and Ledger are required.
type Options struct {
	// Queue receives admitted resources and hands out work batches.
	Queue Queue
	// Ledger records completed crawls and backs the known-resource
	// admission filter.
	Ledger ledger.Ledger
	// Filters overrides the admission chain. Nil installs the default:
	// an http/https scheme filter followed by the known-resource filter.
	Filters filter.Filter
	// Resolver overrides address resolution, for tests. Nil uses the
	// system resolver.
	Resolver resource.Resolver
	// Graph, when set, passively receives discovery edges. Failures are
	// logged and never affect crawl control flow.
	Graph graph.Logger
	// Scorer, when set, attaches a priority in [0, 1] to every admitted
	// resource.
	Scorer func(res *resource.Resource) float64
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Logger receives drop and misuse diagnostics. Nil discards them.
	Logger *slog.Logger
	// SubmitConcurrency caps the goroutines working one Submit call.
	// Zero or negative selects DefaultSubmitConcurrency.
	SubmitConcurrency int
}

// Frontier mediates discovery, admission, dispatch and completion of
// crawl work. All methods are safe for concurrent use.
type Frontier struct {
	queue       Queue
	politeness  AddressPoliteness
	ledger      ledger.Ledger
	filters     filter.Filter
	resolver    resource.Resolver
	graph       graph.Logger
	scorer      func(res *resource.Resource) float64
	clock       func() time.Time
	logger      *slog.Logger
	submitLimit int
}

// New wires a frontier from its collaborators. The queue's politeness
// capability is asserted here, once.
func New(opts Options) (*Frontier, error) {
	if opts.Queue == nil {
		return nil, ErrNoQueue
	}
	if opts.Ledger == nil {
		return nil, ErrNoLedger
	}
	if opts.Filters == nil {
		opts.Filters = filter.Chain{
			filter.NewSchemeFilter("http", "https"),
			filter.NewKnownFilter(opts.Ledger),
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.SubmitConcurrency <= 0 {
		opts.SubmitConcurrency = DefaultSubmitConcurrency
	}

	f := &Frontier{
		queue:       opts.Queue,
		ledger:      opts.Ledger,
		filters:     opts.Filters,
		resolver:    opts.Resolver,
		graph:       opts.Graph,
		scorer:      opts.Scorer,
		clock:       opts.Clock,
		logger:      opts.Logger,
		submitLimit: opts.SubmitConcurrency,
	}
	if politeness, ok := opts.Queue.(AddressPoliteness); ok {
		f.politeness = politeness
	} else {
		f.logger.Info("queue lacks address politeness; completions will only update the ledger")
	}
	return f, nil
}

// Submit runs every discovered reference through normalization,
// resolution and the admission chain, enqueueing the survivors.
// Malformed, unresolvable and filtered references are dropped without
// failing their siblings; only backing-store failures are returned.
func (f *Frontier) Submit(ctx context.Context, refs []string) error {
	g := new(errgroup.Group)
	g.SetLimit(f.submitLimit)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			return f.submitOne(ctx, ref)
		})
	}
	return g.Wait()
}

func (f *Frontier) submitOne(ctx context.Context, ref string) error {
	res, err := resource.New(ref, resource.WithDiscoveredAt(f.clock()))
	if err != nil {
		f.logger.Debug("dropping malformed reference", "reference", ref, "error", err)
		return nil
	}
	if err := resource.Resolve(ctx, f.resolver, res); err != nil {
		f.logger.Warn("dropping unresolvable resource", "uri", res.URI, "error", err)
		return nil
	}
	ok, err := f.filters.Admissible(ctx, res)
	if err != nil {
		return fmt.Errorf("frontier: admission check for %s: %w", res.URI, err)
	}
	if !ok {
		f.logger.Debug("resource filtered", "uri", res.URI)
		return nil
	}
	if f.scorer != nil {
		res.Score = f.scorer(res)
	}
	if err := f.queue.Enqueue(res); err != nil {
		return fmt.Errorf("frontier: enqueue %s: %w", res.URI, err)
	}
	f.logger.Debug("admitted resource", "uri", res.URI, "type", res.Type.String())
	return nil
}

// NextBatch hands out up to maxSize dispatchable resources. It never
// blocks: when everything pending is behind a blocked address the batch
// is empty and the caller decides when to poll again.
func (f *Frontier) NextBatch(maxSize int) []*resource.Resource {
	return f.queue.DequeueBatch(maxSize)
}

// Completion closes the loop for one crawled identity: the ledger
// records the crawl and its lineage, the identity's address is freed,
// discovery edges go to the graph logger, and the children re-enter
// intake. Completions for identities that hold no dispatch lease are
// rejected with ErrNotDispatched.
func (f *Frontier) Completion(ctx context.Context, crawled string, children []string) error {
	uri, err := resource.Normalize(crawled)
	if err != nil {
		f.logger.Warn("rejecting completion for malformed identity", "reference", crawled, "error", err)
		return fmt.Errorf("frontier: completion identity: %w", err)
	}
	if f.politeness != nil {
		if _, ok := f.politeness.Leased(uri); !ok {
			f.logger.Warn("rejecting completion without dispatch lease", "uri", uri)
			return fmt.Errorf("%w: %s", ErrNotDispatched, uri)
		}
	}

	now := f.clock()
	lineage := f.childLineage(children, now)
	if err := f.ledger.Record(ctx, uri, now, lineage); err != nil {
		// The lease stays open; its expiry re-queues the resource, so a
		// crawl is re-done rather than lost.
		return fmt.Errorf("frontier: record %s: %w", uri, err)
	}

	if f.politeness != nil {
		if addr, ok := f.politeness.Complete(uri); ok {
			f.logger.Debug("released address", "uri", uri, "address", addr.String())
		} else {
			f.logger.Warn("duplicate completion", "uri", uri)
		}
	}

	if f.graph != nil && len(lineage) > 0 {
		childURIs := make([]string, 0, len(lineage))
		for _, child := range lineage {
			childURIs = append(childURIs, child.URI)
		}
		if err := f.graph.LogDiscovery(ctx, uri, childURIs); err != nil {
			f.logger.Warn("graph logger failed", "uri", uri, "error", err)
		}
	}

	return f.Submit(ctx, children)
}

// childLineage normalizes reported children into ledger entries,
// dropping the malformed ones.
func (f *Frontier) childLineage(children []string, at time.Time) []ledger.Child {
	lineage := make([]ledger.Child, 0, len(children))
	for _, ref := range children {
		uri, err := resource.Normalize(ref)
		if err != nil {
			f.logger.Debug("dropping malformed child reference", "reference", ref, "error", err)
			continue
		}
		lineage = append(lineage, ledger.Child{URI: uri, DiscoveredAt: at})
	}
	return lineage
}

// PendingWork reports how many admitted resources await dispatch, the
// saturation signal callers poll between batches.
func (f *Frontier) PendingWork() int {
	return f.queue.PendingCount()
}

// BlockedAddresses reports how many addresses currently carry in-flight
// work. Zero when the queue lacks the politeness capability.
func (f *Frontier) BlockedAddresses() int {
	if f.politeness == nil {
		return 0
	}
	return f.politeness.BlockedAddressCount()
}

// ReclaimExpired force-releases overdue dispatch leases and reports how
// many were reclaimed. Zero when the queue lacks the capability.
func (f *Frontier) ReclaimExpired() int {
	if f.politeness == nil {
		return 0
	}
	return f.politeness.ReclaimExpired()
}

// ResubmitDue walks identities whose recrawl window has elapsed and
// feeds up to limit of them back through intake. It returns how many
// were resubmitted.
func (f *Frontier) ResubmitDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	var due []string
	err := f.ledger.DueForRecrawl(ctx, f.clock(), func(uri string) bool {
		due = append(due, uri)
		return len(due) < limit
	})
	if err != nil {
		return 0, fmt.Errorf("frontier: due walk: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	if err := f.Submit(ctx, due); err != nil {
		return len(due), err
	}
	return len(due), nil
}

// Stats is a point-in-time operational snapshot.
type Stats struct {
	// Pending counts admitted resources waiting for dispatch.
	Pending int `json:"pending"`
	// InFlight counts dispatched resources not yet completed.
	InFlight int `json:"in_flight"`
	// BlockedAddresses counts addresses with in-flight work.
	BlockedAddresses int `json:"blocked_addresses"`
	// KnownResources counts distinct identities the ledger has recorded.
	KnownResources int64 `json:"known_resources"`
}

// Snapshot gathers current queue and ledger figures.
func (f *Frontier) Snapshot(ctx context.Context) (Stats, error) {
	known, err := f.ledger.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("frontier: ledger count: %w", err)
	}
	stats := Stats{
		Pending:        f.queue.PendingCount(),
		KnownResources: known,
	}
	if f.politeness != nil {
		stats.InFlight = f.politeness.InFlightCount()
		stats.BlockedAddresses = f.politeness.BlockedAddressCount()
	}
	return stats, nil
}
