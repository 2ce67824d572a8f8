package host

import (
	"context"
	"time"

	"github.com/veriumnet/meshhost/discovery"
	"github.com/veriumnet/meshhost/peer"
	"github.com/veriumnet/meshhost/session"
)

// schedulerLoop drives the 100ms tick: pump discovery, service
// per-session requests, keepalive, and evict late peers, then re-arm.
// It also owns the drain sequence run when the context is canceled,
// mirroring Host::run's early-return branch and Host::doneWorking.
func (h *Host) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(Tick)
	defer ticker.Stop()

	var events <-chan discovery.Event
	if h.discoverySrc != nil {
		events = h.discoverySrc.Events()
	}

	for {
		select {
		case <-ctx.Done():
			h.drain()
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.handleDiscoveryEvent(ev)
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Host) handleDiscoveryEvent(ev discovery.Event) {
	switch ev.Kind {
	case discovery.NodeAdded:
		h.table.GetOrCreate(ev.Node)
		if h.sessions.Len() < h.cfg.IdealPeerCount {
			go h.connect(ev.Node)
		}
	case discovery.NodeRemoved:
		h.table.Remove(ev.Node.ID)
	}
}

func (h *Host) tick() {
	h.sessions.Range(func(id peer.ID, s session.Handle) bool {
		s.ServiceNodesRequest()
		return true
	})

	now := time.Now()
	if now.Sub(h.lastPingBroadcast) >= KeepaliveInterval {
		h.sessions.Range(func(id peer.ID, s session.Handle) bool {
			s.Ping()
			return true
		})
		h.lastPingBroadcast = now
	}

	if now.Sub(h.lastPingBroadcast) >= LateGrace {
		h.evictLatePeers()
	}

	h.sessions.Sweep()
}

func (h *Host) evictLatePeers() {
	h.sessions.Range(func(id peer.ID, s session.Handle) bool {
		if s.LastReceived().Before(h.lastPingBroadcast) {
			s.Disconnect(peer.PingTimeout)
		}
		return true
	})
}

// drain implements Host::doneWorking: cancel the acceptor, wait for any
// in-flight accept to finish, invoke capability shutdown hooks, then
// send ClientQuit to every open session and wait for the registry to
// empty.
func (h *Host) drain() {
	h.lifecycleMu.Lock()
	if h.listener != nil {
		h.listener.Close()
	}
	h.lifecycleMu.Unlock()

	for {
		h.lifecycleMu.Lock()
		accepting := h.accepting
		h.lifecycleMu.Unlock()
		if !accepting {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.caps.OnStopping()

	for {
		n := 0
		h.sessions.Range(func(id peer.ID, s session.Handle) bool {
			s.Disconnect(peer.ClientQuit)
			n++
			return true
		})
		h.sessions.Sweep()
		if n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if h.discoverySrc != nil {
		h.discoverySrc.Close()
	}

	close(h.drained)
}
