// Package host implements the top-level Host: acceptor, dialer,
// scheduler, and lifecycle controller.
package host

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/veriumnet/meshhost/capability"
	"github.com/veriumnet/meshhost/discovery"
	"github.com/veriumnet/meshhost/endpoint"
	"github.com/veriumnet/meshhost/hostevent"
	"github.com/veriumnet/meshhost/hosterrors"
	"github.com/veriumnet/meshhost/identity"
	"github.com/veriumnet/meshhost/logging"
	"github.com/veriumnet/meshhost/peer"
	"github.com/veriumnet/meshhost/session"
)

const (
	// Tick is the scheduler's period, matching Host::run's 100ms timer.
	Tick = 100 * time.Millisecond
	// KeepaliveInterval is how often a ping is broadcast to every live
	// session.
	KeepaliveInterval = 30 * time.Second
	// LateGrace is how long a session may stay silent after a ping
	// broadcast before it is evicted.
	LateGrace = 1 * time.Second
	// dialBackoff bounds how often a repeatedly-failing target is
	// retried.
	dialBackoff = 30 * time.Second
	// dialBackoffCacheSize bounds the LRU cache of recently-failed
	// dial targets.
	dialBackoffCacheSize = 4096
	// fallbackDiscoveryPort is used when no listen port was
	// configured, matching Host::startedWorking's 30303 fallback.
	fallbackDiscoveryPort = 30303
	// portWarnLow/portWarnHigh bound the port range that does not
	// trigger a non-fatal warning.
	portWarnLow  = 30300
	portWarnHigh = 30305
	// ephemeralPortFloor is the boundary above which a port is
	// rewritten to 0 before persisting.
	ephemeralPortFloor = 32768
	// sessionLivenessPoll is how often keepSessionAlive checks whether
	// a session it is anchoring is still open.
	sessionLivenessPoll = 200 * time.Millisecond
)

// Handshake is the external collaborator that turns a raw socket plus
// an optional expected node id into a live session. Host invokes it
// but does not implement it.
type Handshake interface {
	// Accept performs the responder side of a handshake on an inbound
	// connection.
	Accept(ctx context.Context, conn net.Conn) (session.Handle, error)
	// Dial performs the initiator side of a handshake on an outbound
	// connection to the given expected node id.
	Dial(ctx context.Context, conn net.Conn, expected peer.ID) (session.Handle, error)
}

// Config carries the operator-facing settings a Host is constructed
// with.
type Config struct {
	ListenPort     uint16
	IdealPeerCount int
	Network        endpoint.Preferences
}

// Resolver abstracts hostname-to-address lookup so AddNode's async
// resolution path can be driven by a fake in tests instead of the
// real DNS, mirroring TCPNetwork.lookupIP's numeric-or-hostname split.
type Resolver interface {
	LookupIP(host string) ([]net.IP, error)
}

type netResolver struct{}

func (netResolver) LookupIP(host string) ([]net.IP, error) { return net.LookupIP(host) }

// Host is the P2P networking core: it owns the peer table, the live
// session registry, the acceptor and dialer, and the scheduler that
// drives them.
type Host struct {
	log  logging.Logger
	cfg  Config
	id   *identity.Identity
	caps *capability.Registry
	hs   Handshake

	table    *peer.Table
	sessions *session.Registry
	events   *hostevent.Feed
	resolver Resolver

	pendingMu      sync.Mutex
	pending        map[peer.ID]struct{}
	pendingResolve map[peer.ID]struct{}
	backoff        *lru.Cache[peer.ID, time.Time]

	lifecycleMu   sync.Mutex
	running       bool
	listenPort    int
	listener      net.Listener
	accepting     bool
	publicAddr    net.IP
	peerAddresses []net.IP

	cancel  context.CancelFunc
	drained chan struct{}

	discoverySrc discovery.Source

	lastPingBroadcast time.Time
}

// New constructs a Host. Capabilities must already be registered on
// caps; Freeze is called internally at Start.
func New(log logging.Logger, cfg Config, id *identity.Identity, caps *capability.Registry, hs Handshake) *Host {
	backoff, _ := lru.New[peer.ID, time.Time](dialBackoffCacheSize)
	return &Host{
		log:            log,
		cfg:            cfg,
		id:             id,
		caps:           caps,
		hs:             hs,
		table:          peer.NewTable(),
		sessions:       session.NewRegistry(),
		events:         hostevent.NewFeed(),
		resolver:       netResolver{},
		pending:        make(map[peer.ID]struct{}),
		pendingResolve: make(map[peer.ID]struct{}),
		backoff:        backoff,
		listenPort:     -1,
	}
}

// ID returns this host's node id.
func (h *Host) ID() peer.ID { return h.id.NodeID() }

// IsStarted reports whether the host is currently running.
func (h *Host) IsStarted() bool {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.running
}

// ListenPort returns the bound listen port, or -1 if not bound.
func (h *Host) ListenPort() int {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.listenPort
}

// ListenAddress returns the endpoint resolved at Start as the address
// this host advertises to peers, or nil if it has not started or no
// address could be determined.
func (h *Host) ListenAddress() net.IP {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.publicAddr
}

// PeerAddresses returns the local interface addresses considered
// eligible to hand out to peers when Start resolved the public
// endpoint.
func (h *Host) PeerAddresses() []net.IP {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	out := make([]net.IP, len(h.peerAddresses))
	copy(out, h.peerAddresses)
	return out
}

// PeerCount returns the number of live sessions.
func (h *Host) PeerCount() int { return h.sessions.Len() }

// Peers returns info for every live session.
func (h *Host) Peers() []PeerSessionInfo {
	var out []PeerSessionInfo
	h.sessions.Range(func(id peer.ID, s session.Handle) bool {
		out = append(out, PeerSessionInfo{NodeID: id, LastReceived: s.LastReceived()})
		return true
	})
	return out
}

// PeerSessionInfo is a snapshot of one live session.
type PeerSessionInfo struct {
	NodeID       peer.ID
	LastReceived time.Time
}

// SetIdealPeerCount updates the dialer's target peer count.
func (h *Host) SetIdealPeerCount(n int) { h.cfg.IdealPeerCount = n }

// Events returns the host's lifecycle notification feed.
func (h *Host) Events() *hostevent.Feed { return h.events }

// AddNode registers a node as a dial candidate. addr may be a numeric
// IP or a hostname; a hostname is resolved asynchronously in its own
// goroutine so a slow or hanging DNS lookup never blocks the caller,
// mirroring TCPNetwork.lookupIP's numeric-or-hostname split. Concurrent
// calls for the same node id are deduplicated by id, so two lookups
// racing to different transient addresses still converge on the one
// Peer entry that id keys in the table.
func (h *Host) AddNode(id peer.ID, addr string, tcpPort, udpPort uint16) {
	if ip := net.ParseIP(addr); ip != nil {
		h.addNodeAddr(peer.Node{
			ID:  id,
			TCP: peer.Endpoint{IP: ip, Port: tcpPort},
			UDP: peer.Endpoint{IP: ip, Port: udpPort},
		})
		return
	}

	h.pendingMu.Lock()
	if _, already := h.pendingResolve[id]; already {
		h.pendingMu.Unlock()
		return
	}
	h.pendingResolve[id] = struct{}{}
	h.pendingMu.Unlock()

	go func() {
		defer func() {
			h.pendingMu.Lock()
			delete(h.pendingResolve, id)
			h.pendingMu.Unlock()
		}()
		ips, err := h.resolver.LookupIP(addr)
		if err != nil || len(ips) == 0 {
			h.log.Warn("failed to resolve node hostname", "addr", addr, "err", err)
			return
		}
		ip := ips[0]
		h.addNodeAddr(peer.Node{
			ID:  id,
			TCP: peer.Endpoint{IP: ip, Port: tcpPort},
			UDP: peer.Endpoint{IP: ip, Port: udpPort},
		})
	}()
}

func (h *Host) addNodeAddr(n peer.Node) {
	if n.TCP.Port < portWarnLow || n.TCP.Port > portWarnHigh {
		h.log.Warn("configured TCP port outside the conventional range", "port", n.TCP.Port)
	}
	h.table.GetOrCreate(n)
}

// Start binds the acceptor, resolves the public endpoint, invokes
// capability startup hooks, attaches discovery, and enters the
// scheduler loop, mirroring Host::start/startedWorking.
func (h *Host) Start(discoverySrc discovery.Source) error {
	h.lifecycleMu.Lock()
	if h.running {
		h.lifecycleMu.Unlock()
		return nil
	}
	h.running = true
	h.discoverySrc = discoverySrc
	h.lifecycleMu.Unlock()

	h.caps.Freeze()
	h.caps.OnStarting()

	port := int(h.cfg.ListenPort)
	if port == 0 {
		port = fallbackDiscoveryPort
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		h.lifecycleMu.Lock()
		h.listenPort = -1
		h.lifecycleMu.Unlock()
		h.log.Error("failed to bind listen port, continuing without an acceptor", "port", port, "err", err)
	} else {
		h.lifecycleMu.Lock()
		h.listener = ln
		h.listenPort = port
		h.lifecycleMu.Unlock()
	}

	if h.listenPort > 0 {
		res := endpoint.Resolve(h.cfg.Network, endpoint.SystemInterfaces, 2*time.Second)
		h.lifecycleMu.Lock()
		h.publicAddr = res.Public
		h.peerAddresses = res.PeerAddresses
		h.lifecycleMu.Unlock()
		h.log.Info("resolved public endpoint", "ip", res.Public)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.drained = make(chan struct{})

	if h.listener != nil {
		go h.acceptLoop(ctx)
	}
	go h.schedulerLoop(ctx)

	return nil
}

// Stop signals the scheduler and acceptor to shut down and blocks
// until the drain sequence has completed, mirroring Host::stop's
// busy-wait for the timer handle plus Host::doneWorking's drain.
func (h *Host) Stop() {
	h.lifecycleMu.Lock()
	if !h.running {
		h.lifecycleMu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	drained := h.drained
	h.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if drained != nil {
		<-drained
	}
}

func (h *Host) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		h.lifecycleMu.Lock()
		h.accepting = true
		ln := h.listener
		h.lifecycleMu.Unlock()

		conn, err := ln.Accept()

		h.lifecycleMu.Lock()
		h.accepting = false
		h.lifecycleMu.Unlock()

		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			h.log.Debug("accept error, re-arming", "err", err)
			continue
		}
		go h.handleInbound(ctx, conn)
	}
}

func (h *Host) handleInbound(ctx context.Context, conn net.Conn) {
	handle, err := h.hs.Accept(ctx, conn)
	if err != nil {
		herr := hosterrors.New(hosterrors.BadHandshake, "host.handleInbound", err)
		h.log.Debug("inbound handshake failed", "err", herr)
		conn.Close()
		return
	}
	h.registerSession(handle)
}

func (h *Host) registerSession(handle session.Handle) {
	id := handle.NodeID()
	p := handle.Peer()
	h.table.GetOrCreate(p.Node)

	// Capability negotiation itself happens inside the handshake
	// collaborator; by the time a Handle reaches here both sides have
	// already agreed on their shared set, so binding against every
	// registered capability is only correct when the handshake
	// enforces that agreement upstream.
	bindings := h.caps.Bind(h.caps.Offered())
	handle.Bind(bindings)

	// The registry only ever holds a weak reference to a session, so
	// something must hold the strong one for as long as the session is
	// actually open. box is that anchor: keepSessionAlive runs for the
	// session's whole life, keeping box (and so the Handle behind it)
	// reachable, the same role Peer.run's blocking loop plays for a
	// per-peer goroutine.
	box := new(session.Handle)
	*box = handle
	h.sessions.Register(id, box)
	go h.keepSessionAlive(id, box)

	h.events.Send(hostevent.Notification{Kind: hostevent.PeerConnected, NodeID: id})
	h.events.Send(hostevent.Notification{Kind: hostevent.HandshakeCompleted, NodeID: id})
}

// keepSessionAlive anchors box's strong reference for as long as the
// session it holds reports itself open, then drops the registry entry
// and publishes PeerDisconnected.
// Without this, the registry's weak.Pointer would target memory with no
// remaining strong owner and could be collected the instant this
// function returned, making a perfectly live session look offline.
func (h *Host) keepSessionAlive(id peer.ID, box *session.Handle) {
	ticker := time.NewTicker(sessionLivenessPoll)
	defer ticker.Stop()
	for range ticker.C {
		if !(*box).Open() {
			break
		}
	}
	h.sessions.Remove(id)
	h.events.Send(hostevent.Notification{Kind: hostevent.PeerDisconnected, NodeID: id})
}
