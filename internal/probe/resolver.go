package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// LookupIPFunc matches net.Resolver.LookupIP. Injectable so tests can model
// DNS-rebinding setups without touching real DNS.
type LookupIPFunc func(ctx context.Context, network, host string) ([]net.IP, error)

// Resolver resolves a hostname to its full IPv4+IPv6 address set.
type Resolver struct {
	lookup LookupIPFunc
}

func NewResolver(lookup LookupIPFunc) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupIP
	}
	return &Resolver{lookup: lookup}
}

// Resolve attempts A and AAAA resolution independently and returns the
// de-duplicated union. A failure on one record type is swallowed as long as
// the other answers. An empty result set means the host does not exist and is
// not an error; the caller short-circuits to a NOT_FOUND result.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	v4, err4 := r.lookup(ctx, "ip4", host)
	v6, err6 := r.lookup(ctx, "ip6", host)

	if err4 != nil && err6 != nil {
		if dnsNotFound(err4) && dnsNotFound(err6) {
			return nil, nil
		}
		// At least one family failed for a reason other than NXDOMAIN.
		err := err4
		if dnsNotFound(err4) {
			err = err6
		}
		return nil, fmt.Errorf("%w: dns lookup for %q: %v", ErrNetwork, host, err)
	}

	seen := make(map[string]struct{}, len(v4)+len(v6))
	ips := make([]net.IP, 0, len(v4)+len(v6))
	for _, ip := range append(v4, v6...) {
		key := ip.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ips = append(ips, ip)
	}
	return ips, nil
}

// GuardAddresses re-applies the private-range policy to a resolved address
// set. This closes the rebinding gap: a public hostname whose DNS answer
// points inside the network fails here even though literal-host validation
// passed.
func GuardAddresses(ips []net.IP) error {
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrSSRFBlocked, ip)
		}
	}
	return nil
}

// GuardHost validates a single host before a request is sent to it: a literal
// IP is checked against the private ranges directly, a hostname is resolved
// and its full answer set re-checked. The fetcher runs this on every redirect
// target.
func (r *Resolver) GuardHost(ctx context.Context, host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrSSRFBlocked, ip)
		}
		return nil
	}
	ips, err := r.Resolve(ctx, host)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		return fmt.Errorf("%w: %s: no address records", ErrNetwork, host)
	}
	return GuardAddresses(ips)
}

func dnsNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
