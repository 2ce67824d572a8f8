package host

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/veriumnet/meshhost/hosterrors"
	"github.com/veriumnet/meshhost/peer"
)

// connect implements single-flight per-peer connect with a backoff
// cache for repeatedly-failing targets, mirroring Host::connect's
// m_pendingNodeConns set.
func (h *Host) connect(n peer.Node) {
	if !h.IsStarted() {
		return
	}
	if _, ok := h.sessions.Lookup(n.ID); ok {
		return
	}
	if until, ok := h.backoff.Get(n.ID); ok && time.Now().Before(until) {
		return
	}

	h.pendingMu.Lock()
	if _, already := h.pending[n.ID]; already {
		h.pendingMu.Unlock()
		return
	}
	h.pending[n.ID] = struct{}{}
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, n.ID)
		h.pendingMu.Unlock()
	}()

	p := h.table.GetOrCreate(n)
	addr := fmt.Sprintf("%s:%d", n.TCP.IP, n.TCP.Port)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		p.RecordDialFailure(time.Now())
		h.backoff.Add(n.ID, time.Now().Add(dialBackoff))
		herr := hosterrors.New(hosterrors.TransientIO, "host.connect", err)
		h.log.Debug("outbound dial failed", "node", n.ID, "err", herr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	handle, err := h.hs.Dial(ctx, conn, n.ID)
	if err != nil {
		conn.Close()
		p.RecordDialFailure(time.Now())
		h.backoff.Add(n.ID, time.Now().Add(dialBackoff))
		h.log.Debug("outbound handshake failed", "node", n.ID, "err", err)
		return
	}

	p.RecordDialSuccess(time.Now())
	h.registerSession(handle)
}
