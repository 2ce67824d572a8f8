package host

import (
	"net"
	"net/netip"
	"time"

	"github.com/veriumnet/meshhost/hosterrors"
	"github.com/veriumnet/meshhost/netscan"
	"github.com/veriumnet/meshhost/peer"
)

// SaveNodes serializes every peer that satisfies the four selection
// rules, plus the identity secret needed to restore this host's own
// identity alongside its peer list.
func (h *Host) SaveNodes(secret [32]byte) []byte {
	now := time.Now()
	self := h.ID()
	var records []peer.Record
	h.table.Range(func(p *peer.Peer) bool {
		stats := p.Snapshot()
		if !peer.ShouldSave(p.Node, stats, self, now, isPrivateIP) {
			return true
		}
		port := p.Node.TCP.Port
		if port >= ephemeralPortFloor {
			port = 0
		}
		records = append(records, peer.Record{
			IP:             p.Node.TCP.IP,
			TCPPort:        port,
			NodeID:         p.Node.ID,
			Trusted:        stats.Trusted,
			LastConnected:  stats.LastConnected,
			LastAttempted:  stats.LastAttempted,
			FailedAttempts: stats.FailedAttempts,
			LastDisconnect: stats.LastDisconnect,
			Score:          stats.Score,
			Rating:         stats.Rating,
		})
		return true
	})
	return peer.Encode(secret, records)
}

// RestoreNodes decodes data written by SaveNodes and repopulates the
// peer table. Malformed entries are skipped per the CorruptPersistence
// policy; a malformed header returns an error.
func (h *Host) RestoreNodes(data []byte) ([32]byte, error) {
	secret, records, err := peer.Decode(data)
	if err != nil {
		return secret, hosterrors.New(hosterrors.CorruptPersistence, "host.RestoreNodes", err)
	}
	for _, r := range records {
		n := peer.Node{
			ID:  r.NodeID,
			TCP: peer.Endpoint{IP: r.IP, Port: r.TCPPort},
		}
		p := h.table.GetOrCreate(n)
		p.RestoreStats(peer.Stats{
			LastConnected:  r.LastConnected,
			LastAttempted:  r.LastAttempted,
			FailedAttempts: r.FailedAttempts,
			LastDisconnect: r.LastDisconnect,
			Score:          r.Score,
			Rating:         r.Rating,
			Trusted:        r.Trusted,
		})
	}
	return secret, nil
}

func isPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	return netscan.IsLAN(addr.Unmap())
}
