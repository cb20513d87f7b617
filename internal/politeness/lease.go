package politeness

import (
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

// lease tracks one dispatched resource. The token ties log lines about
// a dispatch together; the expiry bounds how long the address stays
// blocked when the worker never reports back.
type lease struct {
	res       *resource.Resource
	addr      netip.Addr
	token     uuid.UUID
	expiresAt time.Time
}

// Leased reports whether the identity is currently dispatched, and if
// so on which address. Completion handling uses this to distinguish a
// real completion from one for work the queue never handed out.
func (q *Queue) Leased(uri string) (netip.Addr, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.leases[uri]
	if !ok {
		return netip.Addr{}, false
	}
	return l.addr, true
}

// Complete consumes the dispatch lease for the identity and frees its
// address in one step, returning the address that was released. The
// second completion for the same dispatch finds no lease and reports
// ok=false without touching any address counter.
func (q *Queue) Complete(uri string) (netip.Addr, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.leases[uri]
	if !ok {
		return netip.Addr{}, false
	}
	delete(q.leases, uri)
	q.releaseLocked(l.addr)
	return l.addr, true
}

// ReclaimExpired force-releases every lease past its expiry and returns
// how many were reclaimed. DequeueBatch does this implicitly; a
// periodic call keeps addresses from idling blocked when no dispatch
// traffic is flowing.
func (q *Queue) ReclaimExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reclaimLocked(q.clock())
}

// reclaimLocked expires overdue leases, frees their addresses and puts
// the resources back at the tail of the queue. Callers hold q.mu.
func (q *Queue) reclaimLocked(now time.Time) int {
	reclaimed := 0
	for uri, l := range q.leases {
		if now.Before(l.expiresAt) {
			continue
		}
		delete(q.leases, uri)
		q.releaseLocked(l.addr)
		if _, dup := q.pendingByURI[uri]; !dup {
			e := &entry{res: l.res, enqueuedAt: now}
			q.pending = append(q.pending, e)
			q.pendingByURI[uri] = e
		}
		reclaimed++
		q.logger.Warn("dispatch lease expired, resource re-queued",
			"uri", uri,
			"address", l.addr.String(),
			"lease", l.token.String())
	}
	return reclaimed
}
