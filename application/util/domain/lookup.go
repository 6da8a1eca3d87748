// Package domain resolves host names into IP addresses.
package domain

import (
	"context"
	"maps"
	"net"
	"net/netip"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

var ErrDomainNotFound = errors.New("domain not found")

// Lookuper resolves a host into an ordered list of addresses.
// Implementations must not keep per-call state; concurrent lookups are allowed.
type Lookuper interface {
	LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error)
}

type mapLookuper struct {
	set map[string][]netip.Addr
}

var _ Lookuper = (*mapLookuper)(nil)

func NewMapLookuper(set map[string][]netip.Addr) *mapLookuper {
	if set == nil {
		set = make(map[string][]netip.Addr)
	}
	return &mapLookuper{set: maps.Clone(set)}
}

func (m *mapLookuper) LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs, ok := m.set[domain]
	if !ok || len(addrs) == 0 {
		return nil, ErrDomainNotFound
	}
	return slices.Clone(addrs), nil
}

func (m *mapLookuper) Set(domain string, addrs []netip.Addr) {
	if len(addrs) == 0 {
		return
	}
	m.set[domain] = addrs
}

func (m *mapLookuper) Del(domain string) { delete(m.set, domain) }

// IPResolver is the part of [net.Resolver] used by [NetLookuper].
type IPResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// NetLookuper resolves through the system resolver.
type NetLookuper struct {
	r IPResolver
}

var _ Lookuper = (*NetLookuper)(nil)

// NewNetLookuper creates a [NetLookuper]. nil r means [net.DefaultResolver].
func NewNetLookuper(r IPResolver) *NetLookuper {
	if r == nil {
		r = net.DefaultResolver
	}
	return &NetLookuper{r: r}
}

func (l *NetLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	// Literal addresses don't need a lookup.
	if addr, err := netip.ParseAddr(domain); err == nil {
		return []netip.Addr{addr}, nil
	}

	host, err := Normalize(domain)
	if err != nil {
		return nil, err
	}

	addrs, err := l.r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errors.Wrap(ErrDomainNotFound, dnsErr.Error())
		}
		return nil, errors.Wrapf(err, "looking up %s", host)
	}

	if len(addrs) == 0 {
		return nil, ErrDomainNotFound
	}

	for i, addr := range addrs {
		addrs[i] = addr.Unmap()
	}

	return addrs, nil
}

// Normalize converts internationalized domain names into their ASCII form.
func Normalize(domain string) (string, error) {
	host, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", errors.Wrapf(err, "invalid domain name %q", domain)
	}
	return host, nil
}
