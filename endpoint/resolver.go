// Package endpoint implements the public-endpoint resolution algorithm:
// given configuration, the local interface list, and NAT traversal,
// decide what address this host advertises to peers.
package endpoint

import (
	"net"
	"net/netip"
	"time"

	"github.com/veriumnet/meshhost/nat"
	"github.com/veriumnet/meshhost/netscan"
)

// Preferences mirrors the operator-supplied NetworkPreferences.
type Preferences struct {
	AdvertisedIP           net.IP
	EnableUPnP             bool
	ListenPort             uint16
	LocalNetworkingAllowed bool
}

// Result is the resolved public endpoint plus the interface addresses
// considered along the way.
type Result struct {
	Public         net.IP
	PeerAddresses  []net.IP
	UsedNAT        nat.Interface
	UsedNATMapping bool
}

// Interfaces abstracts the local network interface list so tests can
// supply a fixed set instead of the real machine's interfaces.
type Interfaces func() ([]net.IP, error)

// SystemInterfaces lists addresses from net.InterfaceAddrs.
func SystemInterfaces() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.To4() == nil {
			continue
		}
		ips = append(ips, ipNet.IP)
	}
	return ips, nil
}

// Resolve applies a five-rule algorithm mirroring Host::determinePublic.
func Resolve(prefs Preferences, ifaces Interfaces, natTimeout time.Duration) Result {
	addrs, _ := ifaces()
	var res Result
	for _, ip := range addrs {
		if isEligible(ip, prefs.LocalNetworkingAllowed) {
			res.PeerAddresses = append(res.PeerAddresses, ip)
		}
	}

	// Rule 1: advertised IP, if public or (private and local networking allowed).
	if prefs.AdvertisedIP != nil {
		addr, ok := toAddr(prefs.AdvertisedIP)
		if ok {
			if netscan.IsPublic(addr) || (netscan.IsLAN(addr) && prefs.LocalNetworkingAllowed) {
				res.Public = prefs.AdvertisedIP
				return res
			}
		}
	}

	// Rule 2: first public IPv4 interface address.
	for _, ip := range addrs {
		addr, ok := toAddr(ip)
		if ok && netscan.IsPublic(addr) {
			res.Public = ip
			return res
		}
	}

	// Rule 3: NAT traversal.
	if prefs.EnableUPnP {
		if iface, ip, err := nat.Discover(natTimeout); err == nil {
			res.Public = ip
			res.UsedNAT = iface
			res.UsedNATMapping = iface.SupportsMapping()
			return res
		}
	}

	// Rule 4: first private IPv4 interface address, if allowed.
	if prefs.LocalNetworkingAllowed {
		for _, ip := range addrs {
			addr, ok := toAddr(ip)
			if ok && netscan.IsLAN(addr) {
				res.Public = ip
				return res
			}
		}
	}

	// Rule 5: unspecified endpoint.
	res.Public = net.IPv4zero
	return res
}

func isEligible(ip net.IP, localAllowed bool) bool {
	addr, ok := toAddr(ip)
	if !ok {
		return false
	}
	if netscan.IsSpecial(addr) {
		return false
	}
	if netscan.IsLAN(addr) {
		return localAllowed
	}
	return true
}

func toAddr(ip net.IP) (netip.Addr, bool) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
