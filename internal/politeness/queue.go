package politeness

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

// ErrNotResolved is returned when a resource without a resolved network
// address is offered to the queue. Address resolution happens upstream;
// an unresolved resource here is a programming error, not a crawl error.
var ErrNotResolved = errors.New("politeness: resource has no resolved address")

const (
	// DefaultPerAddressLimit allows one in-flight resource per network
	// address, the strictest politeness setting.
	DefaultPerAddressLimit = 1

	// DefaultLeaseTTL is how long a dispatched resource may stay
	// unreported before its address is force-released and the resource
	// is re-queued.
	DefaultLeaseTTL = 5 * time.Minute
)

// Options configures a Queue.
type Options struct {
	// PerAddressLimit caps concurrently dispatched resources per network
	// address. Values below 1 are treated as 1.
	PerAddressLimit int
	// LeaseTTL bounds how long a dispatch may stay unreported.
	// Non-positive values fall back to DefaultLeaseTTL.
	LeaseTTL time.Duration
	// Scorer, when set, re-scores candidates at dequeue time so that
	// fresh model output steers dispatch order. When nil the score
	// recorded on the resource at admission is used.
	Scorer func(*resource.Resource) float64
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Logger receives lease expiry warnings. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the options used by NewQueue when the caller
// passes the zero value.
func DefaultOptions() Options {
	return Options{
		PerAddressLimit: DefaultPerAddressLimit,
		LeaseTTL:        DefaultLeaseTTL,
	}
}

// entry is a queued resource waiting for its address to become free.
type entry struct {
	res        *resource.Resource
	enqueuedAt time.Time
}

// Queue is an address-aware FIFO dispatch queue. All methods are safe
// for concurrent use.
type Queue struct {
	mu           sync.Mutex
	pending      []*entry
	pendingByURI map[string]*entry
	blocked      map[netip.Addr]int
	leases       map[string]*lease

	perAddrLimit int
	leaseTTL     time.Duration
	scorer       func(*resource.Resource) float64
	clock        func() time.Time
	logger       *slog.Logger
}

// NewQueue creates an empty queue. The zero Options value selects
// DefaultOptions.
func NewQueue(opts Options) *Queue {
	if opts.PerAddressLimit < 1 {
		opts.PerAddressLimit = DefaultPerAddressLimit
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Queue{
		pendingByURI: make(map[string]*entry),
		blocked:      make(map[netip.Addr]int),
		leases:       make(map[string]*lease),
		perAddrLimit: opts.PerAddressLimit,
		leaseTTL:     opts.LeaseTTL,
		scorer:       opts.Scorer,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
}

// Enqueue adds a resource to the tail of the queue. A resource whose
// identity is already pending is dropped so that the earliest discovery
// wins; re-discovery of an in-flight identity is queued again because
// its eventual dispatch only happens after the current one completes.
func (q *Queue) Enqueue(res *resource.Resource) error {
	if res == nil || !res.Resolved() {
		return ErrNotResolved
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.pendingByURI[res.URI]; dup {
		return nil
	}
	e := &entry{res: res, enqueuedAt: q.clock()}
	q.pending = append(q.pending, e)
	q.pendingByURI[res.URI] = e
	return nil
}

// DequeueBatch returns up to maxSize resources whose addresses are
// currently free, blocking each returned address and opening a dispatch
// lease per resource. It never waits: when every pending resource is
// behind a blocked address the result is empty and the caller is
// expected to retry after completions arrive. Candidates are taken in
// FIFO order; when scores are present they sort the eligible candidates
// first, with FIFO order preserved among equal scores.
func (q *Queue) DequeueBatch(maxSize int) []*resource.Resource {
	if maxSize <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	q.reclaimLocked(now)

	var candidates []*entry
	for _, e := range q.pending {
		if q.blocked[e.res.Address] >= q.perAddrLimit {
			continue
		}
		if _, inFlight := q.leases[e.res.URI]; inFlight {
			// The same identity is already dispatched; sending a second
			// copy would waste a worker on work about to be deduplicated
			// by the ledger.
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil
	}
	q.sortByScore(candidates)

	taken := make(map[*entry]bool, maxSize)
	claimed := make(map[netip.Addr]int)
	batch := make([]*resource.Resource, 0, min(maxSize, len(candidates)))
	for _, e := range candidates {
		if len(batch) == maxSize {
			break
		}
		if q.blocked[e.res.Address]+claimed[e.res.Address] >= q.perAddrLimit {
			continue
		}
		claimed[e.res.Address]++
		taken[e] = true
		batch = append(batch, e.res)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, res := range batch {
		q.blocked[res.Address]++
		q.leases[res.URI] = &lease{
			res:       res,
			addr:      res.Address,
			token:     uuid.New(),
			expiresAt: now.Add(q.leaseTTL),
		}
		delete(q.pendingByURI, res.URI)
	}
	kept := q.pending[:0]
	for _, e := range q.pending {
		if !taken[e] {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	return batch
}

// sortByScore orders candidates highest score first. The sort is stable
// so that equally scored entries keep their FIFO order, and a queue
// without any scoring stays strictly FIFO.
func (q *Queue) sortByScore(candidates []*entry) {
	scores := make([]float64, len(candidates))
	scored := false
	for i, e := range candidates {
		if q.scorer != nil {
			scores[i] = q.scorer(e.res)
		} else {
			scores[i] = e.res.Score
		}
		if scores[i] != 0 {
			scored = true
		}
	}
	if !scored {
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[i] > scores[j]
	})
}

// Release frees one in-flight slot of the given address, making pending
// resources behind it eligible for dispatch again.
func (q *Queue) Release(addr netip.Addr) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseLocked(addr)
}

func (q *Queue) releaseLocked(addr netip.Addr) {
	n, ok := q.blocked[addr]
	if !ok {
		return
	}
	if n <= 1 {
		delete(q.blocked, addr)
		return
	}
	q.blocked[addr] = n - 1
}

// PendingCount reports how many resources are waiting for dispatch.
// Leased resources are not counted.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlightCount reports how many resources are dispatched and not yet
// completed.
func (q *Queue) InFlightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.leases)
}

// BlockedAddressCount reports how many distinct addresses currently
// have at least one in-flight resource.
func (q *Queue) BlockedAddressCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocked)
}
