package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"golang.org/x/sync/singleflight"
)

// DefaultResolveTTL bounds how long a lookup is reused across cycles.
const DefaultResolveTTL = 60 * time.Second

// ErrNoAddress is returned when a name resolves to no usable address.
var ErrNoAddress = errors.New("no addresses found")

// LookupFunc matches (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

type resolveEntry struct {
	addrs []netip.Addr
	err   error
	ok    bool
}

// Resolver caches host lookups for a TTL. Concurrent lookups of the same
// host share one query. Failed lookups are cached too, so an unresolvable
// host costs one query per TTL rather than one per port.
type Resolver struct {
	cache  *ttlworker.Cache[string, resolveEntry]
	group  singleflight.Group
	lookup LookupFunc
}

// NewResolver returns a caching resolver. A nil lookup uses net.DefaultResolver.
func NewResolver(ttl time.Duration, lookup LookupFunc) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolveTTL
	}
	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}
	return &Resolver{
		cache:  ttlworker.NewCache[string, resolveEntry](ttl),
		lookup: lookup,
	}
}

// Resolve returns the addresses for host. IP literals are returned
// without a lookup.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr.Unmap()}, nil
	}
	if e := r.cache.Get(host); e.ok {
		return e.addrs, e.err
	}

	v, _, _ := r.group.Do(host, func() (any, error) {
		if e := r.cache.Get(host); e.ok {
			return e, nil
		}
		addrs, err := r.lookup(ctx, "ip", host)
		if err == nil && len(addrs) == 0 {
			err = ErrNoAddress
		}
		if err != nil {
			err = fmt.Errorf("resolving %s: %w", host, err)
		}
		e := resolveEntry{addrs: addrs, err: err, ok: true}
		// A lookup cut short by our own cancellation says nothing about the host.
		if ctx.Err() == nil {
			r.cache.Set(host, e)
		}
		return e, nil
	})
	e := v.(resolveEntry)
	return e.addrs, e.err
}

// ResolveAll resolves every host and returns the ones that failed. It is
// used at startup to decide whether any target is reachable at all.
func (r *Resolver) ResolveAll(ctx context.Context, hosts []string) map[string]error {
	failed := make(map[string]error)
	for _, h := range hosts {
		if _, err := r.Resolve(ctx, h); err != nil {
			failed[h] = err
		}
	}
	return failed
}

// Pick returns the preferred address, IPv4 first.
func Pick(addrs []netip.Addr) netip.Addr {
	for _, a := range addrs {
		if a.Is4() || a.Is4In6() {
			return a.Unmap()
		}
	}
	return addrs[0]
}
