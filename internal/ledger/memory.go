package ledger

import (
	"container/heap"
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"
)

// shardCount is the number of lock shards in the memory backend. Writers
// to identities in different shards never contend.
const shardCount = 16

// Memory is the in-process ledger for single-process deployments.
//
// Design decision: The identity map is sharded by an FNV hash of the URI
// rather than guarded by one mutex because completions for different
// identities arrive from many workers at once and must not serialize on
// each other; only writers to the same identity serialize.
type Memory struct {
	shards [shardCount]memoryShard
	due    dueIndex

	ttl     time.Duration
	lineage bool
	clock   func() time.Time
}

type memoryShard struct {
	mu      sync.RWMutex
	records map[string]*KnownResource
}

// NewMemory creates a memory-backed ledger.
func NewMemory(opts Options) *Memory {
	m := &Memory{
		ttl:     opts.RecrawlTTL,
		lineage: opts.Lineage,
		clock:   opts.clock(),
	}
	for i := range m.shards {
		m.shards[i].records = make(map[string]*KnownResource)
	}
	return m
}

// shard returns the lock shard responsible for uri.
func (m *Memory) shard(uri string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uri))
	return &m.shards[h.Sum32()%shardCount]
}

// IsAdmissible implements Ledger.
func (m *Memory) IsAdmissible(_ context.Context, uri string) (bool, error) {
	s := m.shard(uri)
	s.mu.RLock()
	rec, ok := s.records[uri]
	if !ok {
		s.mu.RUnlock()
		return true, nil
	}
	last, ttl := rec.LastCrawledAt, rec.RecrawlTTL
	s.mu.RUnlock()

	eligible, recrawls := eligibleAt(last, ttl)
	if !recrawls {
		return false, nil
	}
	return !m.clock().Before(eligible), nil
}

// Record implements Ledger.
func (m *Memory) Record(_ context.Context, uri string, crawledAt time.Time, children []Child) error {
	s := m.shard(uri)
	s.mu.Lock()
	rec, ok := s.records[uri]
	if !ok {
		rec = &KnownResource{URI: uri}
		s.records[uri] = rec
	}
	if crawledAt.After(rec.LastCrawledAt) {
		rec.LastCrawledAt = crawledAt
	}
	rec.RecrawlTTL = m.ttl
	if m.lineage && len(children) > 0 {
		rec.Children = mergeChildren(rec.Children, children)
	}
	last := rec.LastCrawledAt
	s.mu.Unlock()

	if eligible, recrawls := eligibleAt(last, m.ttl); recrawls {
		m.due.push(uri, eligible)
	}
	return nil
}

// Count implements Ledger.
func (m *Memory) Count(_ context.Context) (int64, error) {
	var total int64
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		total += int64(len(s.records))
		s.mu.RUnlock()
	}
	return total, nil
}

// DueForRecrawl implements Ledger. The index may hold stale entries from
// earlier writes of the same identity; each candidate is validated against
// the live record before it is reported.
func (m *Memory) DueForRecrawl(ctx context.Context, now time.Time, visit func(uri string) bool) error {
	candidates := m.due.snapshot()
	seen := make(map[string]struct{})

	for candidates.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := heap.Pop(&candidates).(dueEntry)
		if e.at.After(now) {
			break
		}
		if _, done := seen[e.uri]; done {
			continue
		}
		seen[e.uri] = struct{}{}

		s := m.shard(e.uri)
		s.mu.RLock()
		rec, ok := s.records[e.uri]
		var last time.Time
		var ttl time.Duration
		if ok {
			last, ttl = rec.LastCrawledAt, rec.RecrawlTTL
		}
		s.mu.RUnlock()
		if !ok {
			continue
		}

		eligible, recrawls := eligibleAt(last, ttl)
		if !recrawls || eligible.After(now) {
			continue
		}
		if !visit(e.uri) {
			return nil
		}
	}
	return nil
}

// Children returns the recorded lineage for a parent identity. Used by
// provenance queries and tests, not by scheduling.
func (m *Memory) Children(_ context.Context, parent string) ([]Child, error) {
	s := m.shard(parent)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[parent]
	if !ok {
		return nil, nil
	}
	return slices.Clone(rec.Children), nil
}

// Lineage implements Ledger.
func (m *Memory) Lineage() bool {
	return m.lineage
}

// Close implements Ledger. The memory backend holds no external resources;
// Close exists to satisfy the contract.
func (m *Memory) Close() error {
	return nil
}

// dueEntry is one next-eligible index entry. Entries are never removed on
// update; superseded ones are detected during the walk.
type dueEntry struct {
	uri string
	at  time.Time
}

// dueIndex is a min-heap of next-eligible times under its own lock.
type dueIndex struct {
	mu sync.Mutex
	h  dueHeap
}

func (d *dueIndex) push(uri string, at time.Time) {
	d.mu.Lock()
	heap.Push(&d.h, dueEntry{uri: uri, at: at})
	d.mu.Unlock()
}

// snapshot copies the heap so a walk never blocks concurrent writers.
func (d *dueIndex) snapshot() dueHeap {
	d.mu.Lock()
	cp := dueHeap(slices.Clone(d.h))
	d.mu.Unlock()
	return cp
}

type dueHeap []dueEntry

func (h dueHeap) Len() int           { return len(h) }
func (h dueHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h dueHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *dueHeap) Push(x any)        { *h = append(*h, x.(dueEntry)) }

func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
