package resource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrUnresolvedAddress is returned when a resource's host cannot be
// resolved to a network address. The resource is reported and dropped; it
// must never reach the politeness queue.
var ErrUnresolvedAddress = errors.New("unresolved address")

// Resolver resolves a hostname to network addresses. *net.Resolver
// satisfies this interface, so production code passes net.DefaultResolver
// and tests inject a fake.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolve fills in the resource's network address. IP literals short-circuit
// without a lookup. When the resolver returns several addresses the first
// one wins; politeness only needs a stable address per host, not the full
// set. A nil resolver falls back to net.DefaultResolver.
func Resolve(ctx context.Context, resolver Resolver, r *Resource) error {
	if r.Resolved() {
		return nil
	}
	if r.Host == "" {
		return fmt.Errorf("%w: no host in %s", ErrUnresolvedAddress, r.URI)
	}

	if addr, err := netip.ParseAddr(r.Host); err == nil {
		r.Address = addr.Unmap()
		return nil
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", r.Host)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrUnresolvedAddress, r.Host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: no addresses for %s", ErrUnresolvedAddress, r.Host)
	}

	// Unmap 4-in-6 forms so the same host always yields the same map key.
	r.Address = addrs[0].Unmap()
	return nil
}
