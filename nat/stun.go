package nat

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/stun"
)

// stunDefaultServerAddr is used when no server address is configured.
const stunDefaultServerAddr = "stun.l.google.com:19302"

// STUNer is a NAT traversal Interface backed by a public STUN server.
// It never maps ports, only reports the address a STUN binding request
// was observed to arrive from.
type STUNer struct {
	serverAddr string
}

// NewSTUN returns a STUNer talking to serverAddr, or the package
// default if serverAddr is empty.
func NewSTUN(serverAddr string) STUNer {
	if serverAddr == "" {
		serverAddr = stunDefaultServerAddr
	}
	return STUNer{serverAddr: serverAddr}
}

// STUNDefault returns a STUNer using the package default server.
func STUNDefault() STUNer { return NewSTUN("") }

func (s STUNer) String() string { return fmt.Sprintf("STUN(%s)", s.serverAddr) }

func (STUNer) SupportsMapping() bool { return false }

func (STUNer) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) (uint16, error) {
	return uint16(extport), nil
}

func (STUNer) DeleteMapping(string, int, int) error { return nil }

func (s STUNer) ExternalIP() (net.IP, error) {
	conn, err := stun.Dial("udp4", s.serverAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	var response *stun.Event
	if err := conn.Do(message, func(event stun.Event) { response = &event }); err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, response.Error
	}

	var mappedAddr stun.XORMappedAddress
	if err := mappedAddr.GetFrom(response.Message); err != nil {
		return nil, err
	}
	return mappedAddr.IP, nil
}
