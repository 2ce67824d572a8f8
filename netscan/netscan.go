// Package netscan classifies IP addresses as private, public, or
// belonging to a special-use range, for the endpoint resolver's
// interface scan.
package netscan

import "net/netip"

// list is a set of IP networks.
type list []netip.Prefix

func (l list) contains(ip netip.Addr) bool {
	for _, n := range l {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParse(cidrs ...string) list {
	l := make(list, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			panic(err)
		}
		l = append(l, p)
	}
	return l
}

// special4/special6 mirror the IANA special-use registries; the ranges
// themselves are factual data, not re-derived here.
var special4 = mustParse(
	"0.0.0.0/8",
	"192.0.0.0/29",
	"192.0.0.9/32",
	"192.0.0.170/32",
	"192.0.0.171/32",
	"192.0.2.0/24",
	"192.31.196.0/24",
	"192.52.193.0/24",
	"192.88.99.0/24",
	"192.175.48.0/24",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"255.255.255.255/32",
)

var special6 = mustParse(
	"100::/64",
	"2001::/32",
	"2001:1::1/128",
	"2001:2::/48",
	"2001:3::/32",
	"2001:4:112::/48",
	"2001:5::/32",
	"2001:10::/28",
	"2001:20::/28",
	"2001:db8::/32",
	"2002::/16",
)

// IsLAN reports whether ip is a loopback, private, or link-local
// address — anything the endpoint resolver should only trust when
// local networking is explicitly allowed.
func IsLAN(ip netip.Addr) bool {
	if ip.Is4In6() {
		ip = netip.AddrFrom4(ip.As4())
	}
	if ip.IsLoopback() {
		return true
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// IsSpecial reports whether ip falls in a special-use range (broadcast,
// multicast, documentation/test ranges) that is never a usable public
// endpoint.
func IsSpecial(ip netip.Addr) bool {
	if ip.Is4In6() {
		ip = netip.AddrFrom4(ip.As4())
	}
	if ip.IsMulticast() {
		return true
	}
	if ip.Is4() {
		return special4.contains(ip)
	}
	return special6.contains(ip)
}

// IsPublic reports whether ip is neither a LAN address nor a
// special-use address — the "ispublic" test the endpoint resolver's
// rule 1 and rule 2 apply.
func IsPublic(ip netip.Addr) bool {
	if !ip.IsValid() || ip.IsUnspecified() {
		return false
	}
	return !IsLAN(ip) && !IsSpecial(ip)
}
