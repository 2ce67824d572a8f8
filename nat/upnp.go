package nat

import (
	"fmt"
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"
)

// upnpClient is the subset of the several generations of IGD clients
// goupnp generates that this package needs.
type upnpClient interface {
	GetExternalIPAddress() (string, error)
	AddPortMapping(remoteHost string, externalPort uint16, protocol string, internalPort uint16, internalClient string, enabled bool, description string, leaseDuration uint32) error
	DeletePortMapping(remoteHost string, externalPort uint16, protocol string) error
}

// upnpNAT is a NAT traversal Interface backed by an IGD device found
// via UPnP discovery.
type upnpNAT struct {
	dev upnpClient
}

// UPnP discovers an Internet Gateway Device on the local network. The
// returned Interface's methods fail if no device was found; discovery
// itself is attempted lazily on first use so constructing an UPnP()
// value is always cheap.
func UPnP() Interface {
	return &upnpNAT{}
}

func (n *upnpNAT) String() string { return "UPnP" }

func (n *upnpNAT) SupportsMapping() bool { return true }

func (n *upnpNAT) client() (upnpClient, error) {
	if n.dev != nil {
		return n.dev, nil
	}
	clients, _, err := internetgateway2.NewWANIPConnection2Clients()
	if err == nil && len(clients) > 0 {
		n.dev = clients[0]
		return n.dev, nil
	}
	clients1, _, err := internetgateway2.NewWANIPConnection1Clients()
	if err == nil && len(clients1) > 0 {
		n.dev = clients1[0]
		return n.dev, nil
	}
	return nil, fmt.Errorf("nat: no UPnP IGD found")
}

func (n *upnpNAT) ExternalIP() (net.IP, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	s, err := c.GetExternalIPAddress()
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("nat: UPnP device returned invalid IP %q", s)
	}
	return ip, nil
}

func (n *upnpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) (uint16, error) {
	c, err := n.client()
	if err != nil {
		return 0, err
	}
	ip, err := n.ExternalIP()
	if err != nil {
		return 0, err
	}
	_ = ip
	proto := "TCP"
	if protocol == "udp" {
		proto = "UDP"
	}
	local, err := localAddr()
	if err != nil {
		return 0, err
	}
	err = c.AddPortMapping("", uint16(extport), proto, uint16(intport), local, true, name, uint32(lifetime/time.Second))
	if err != nil {
		return 0, err
	}
	return uint16(extport), nil
}

func (n *upnpNAT) DeleteMapping(protocol string, extport, intport int) error {
	c, err := n.client()
	if err != nil {
		return err
	}
	proto := "TCP"
	if protocol == "udp" {
		proto = "UDP"
	}
	return c.DeletePortMapping("", uint16(extport), proto)
}

func localAddr() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
