package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

// Filter is one admission predicate. A false verdict is a normal
// rejection, not a failure; errors are reserved for backing-store
// trouble and abort the whole admission check.
type Filter interface {
	Admissible(ctx context.Context, res *resource.Resource) (bool, error)
}

// Chain evaluates filters in order and short-circuits on the first
// rejection or error. An empty chain admits everything.
type Chain []Filter

// Admissible implements Filter.
func (c Chain) Admissible(ctx context.Context, res *resource.Resource) (bool, error) {
	for _, f := range c {
		ok, err := f.Admissible(ctx, res)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SchemeFilter admits resources whose URI scheme is on an allow-list.
type SchemeFilter struct {
	allowed map[string]bool
}

// NewSchemeFilter builds a filter admitting exactly the given schemes,
// case-insensitively. No schemes means nothing is admitted.
func NewSchemeFilter(schemes ...string) *SchemeFilter {
	allowed := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		allowed[strings.ToLower(s)] = true
	}
	return &SchemeFilter{allowed: allowed}
}

// Admissible implements Filter. Canonical identities always carry a
// scheme, so a missing one rejects.
func (f *SchemeFilter) Admissible(_ context.Context, res *resource.Resource) (bool, error) {
	scheme, _, ok := strings.Cut(res.URI, ":")
	if !ok {
		return false, nil
	}
	return f.allowed[scheme], nil
}

// HostFilter rejects resources on an operator-configured host
// deny-list. Matching is by exact host, case-insensitive.
type HostFilter struct {
	denied map[string]bool
}

// NewHostFilter builds a filter rejecting exactly the given hosts.
// An empty deny-list admits everything.
func NewHostFilter(hosts ...string) *HostFilter {
	denied := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		denied[strings.ToLower(h)] = true
	}
	return &HostFilter{denied: denied}
}

// Admissible implements Filter. Canonical identities carry a lowercase
// host, so the lookup needs no further folding.
func (f *HostFilter) Admissible(_ context.Context, res *resource.Resource) (bool, error) {
	return !f.denied[res.Host], nil
}

// Admission is the ledger capability the known-resource filter needs.
type Admission interface {
	IsAdmissible(ctx context.Context, uri string) (bool, error)
}

// KnownFilter rejects identities the ledger still considers crawled:
// unknown identities pass, recorded ones pass only once their recrawl
// window has elapsed.
type KnownFilter struct {
	ledger Admission
}

// NewKnownFilter builds a filter backed by the given ledger.
func NewKnownFilter(led Admission) *KnownFilter {
	return &KnownFilter{ledger: led}
}

// Admissible implements Filter. Ledger failure aborts the admission
// check; silently treating an unreadable ledger as "unknown" would
// re-crawl everything it knows about.
func (f *KnownFilter) Admissible(ctx context.Context, res *resource.Resource) (bool, error) {
	ok, err := f.ledger.IsAdmissible(ctx, res.URI)
	if err != nil {
		return false, fmt.Errorf("filter: known-resource check: %w", err)
	}
	return ok, nil
}
