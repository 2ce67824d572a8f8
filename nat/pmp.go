package nat

import (
	"net"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"
)

// pmpNAT is a NAT traversal Interface backed by a NAT-PMP capable
// router, tried after UPnP when a gateway does not answer SSDP.
type pmpNAT struct {
	client *natpmp.Client
}

// PMP returns a NAT-PMP Interface targeting the default gateway.
func PMP() Interface {
	return &pmpNAT{}
}

func (n *pmpNAT) String() string { return "NAT-PMP" }

func (n *pmpNAT) SupportsMapping() bool { return true }

func (n *pmpNAT) ensureClient() (*natpmp.Client, error) {
	if n.client != nil {
		return n.client, nil
	}
	gw, err := defaultGateway()
	if err != nil {
		return nil, err
	}
	n.client = natpmp.NewClient(gw)
	return n.client, nil
}

func (n *pmpNAT) ExternalIP() (net.IP, error) {
	c, err := n.ensureClient()
	if err != nil {
		return nil, err
	}
	res, err := c.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	return net.IPv4(res.ExternalIPAddress[0], res.ExternalIPAddress[1], res.ExternalIPAddress[2], res.ExternalIPAddress[3]), nil
}

func (n *pmpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) (uint16, error) {
	c, err := n.ensureClient()
	if err != nil {
		return 0, err
	}
	res, err := c.AddPortMapping(protocol, intport, extport, int(lifetime/time.Second))
	if err != nil {
		return 0, err
	}
	return uint16(res.MappedExternalPort), nil
}

func (n *pmpNAT) DeleteMapping(protocol string, extport, intport int) error {
	c, err := n.ensureClient()
	if err != nil {
		return err
	}
	_, err = c.AddPortMapping(protocol, intport, 0, 0)
	return err
}

// defaultGateway returns the first-hop router by asking the OS for the
// route to a well-known public address, then taking its local address'
// network base — a rough stand-in for a platform-specific default
// route lookup.
func defaultGateway() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr).IP.To4()
	gw := net.IPv4(local[0], local[1], local[2], 1)
	return gw, nil
}
