// Package nat implements external-address discovery and port mapping
// for the endpoint resolver, trying UPnP, then NAT-PMP, then STUN.
//
// The core Interface this package defines, and its UPnP/NAT-PMP
// probers, are written against the two port-mapping libraries this
// module requires for that purpose.
package nat

import (
	"net"
	"time"
)

// Interface is a NAT traversal mechanism.
type Interface interface {
	String() string
	// ExternalIP returns the mechanism's view of our public IP.
	ExternalIP() (net.IP, error)
	// SupportsMapping reports whether AddMapping/DeleteMapping do
	// anything real for this mechanism.
	SupportsMapping() bool
	AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) (uint16, error)
	DeleteMapping(protocol string, extport, intport int) error
}

// Discover tries every known mechanism in order (UPnP, then NAT-PMP,
// then STUN) and returns the first that produces an external address.
// Each prober gets a short bounded timeout; failures are non-fatal and
// move on to the next mechanism.
func Discover(timeout time.Duration) (Interface, net.IP, error) {
	probers := []Interface{UPnP(), PMP(), STUNDefault()}
	var lastErr error
	for _, p := range probers {
		ip, err := probeWithTimeout(p, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		return p, ip, nil
	}
	return nil, nil, lastErr
}

func probeWithTimeout(p Interface, timeout time.Duration) (net.IP, error) {
	type result struct {
		ip  net.IP
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ip, err := p.ExternalIP()
		ch <- result{ip, err}
	}()
	select {
	case r := <-ch:
		return r.ip, r.err
	case <-time.After(timeout):
		return nil, errTimeout{p.String()}
	}
}

type errTimeout struct{ mechanism string }

func (e errTimeout) Error() string { return e.mechanism + ": timed out" }
