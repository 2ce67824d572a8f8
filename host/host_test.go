package host

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veriumnet/meshhost/capability"
	"github.com/veriumnet/meshhost/identity"
	"github.com/veriumnet/meshhost/logging"
	"github.com/veriumnet/meshhost/peer"
	"github.com/veriumnet/meshhost/session"
)

type rejectHandshake struct{}

func (rejectHandshake) Accept(ctx context.Context, conn net.Conn) (session.Handle, error) {
	return nil, errRejected
}
func (rejectHandshake) Dial(ctx context.Context, conn net.Conn, expected peer.ID) (session.Handle, error) {
	return nil, errRejected
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errRejected = stubErr("rejected")

// openHandle is a session.Handle double that stays open until
// Disconnect is called, letting tests observe whether the registry
// keeps reporting a live session over time.
type openHandle struct {
	id   peer.ID
	p    *peer.Peer
	open bool
}

func (h *openHandle) NodeID() peer.ID                   { return h.id }
func (h *openHandle) Peer() *peer.Peer                  { return h.p }
func (h *openHandle) Open() bool                        { return h.open }
func (h *openHandle) LastReceived() time.Time           { return time.Now() }
func (h *openHandle) Ping()                             {}
func (h *openHandle) Disconnect(peer.DisconnectReason)  { h.open = false }
func (h *openHandle) ServiceNodesRequest()              {}
func (h *openHandle) Bind(bindings []capability.Binding) {}

type acceptingHandshake struct{}

func (acceptingHandshake) Accept(ctx context.Context, conn net.Conn) (session.Handle, error) {
	id := peer.ID{42}
	return &openHandle{id: id, p: peer.New(peer.Node{ID: id}), open: true}, nil
}
func (acceptingHandshake) Dial(ctx context.Context, conn net.Conn, expected peer.ID) (session.Handle, error) {
	return nil, errRejected
}

type fakeResolver struct {
	ips []net.IP
	err error
}

func (r fakeResolver) LookupIP(host string) ([]net.IP, error) { return r.ips, r.err }

type countingResolver struct {
	mu    sync.Mutex
	calls int
	ips   []net.IP
}

func (r *countingResolver) LookupIP(host string) ([]net.IP, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	return r.ips, nil
}

func newTestHost(t *testing.T, port uint16) *Host {
	t.Helper()
	store := &identity.MemStore{}
	id, err := identity.Load(store)
	if err != nil {
		t.Fatalf("identity.Load: %v", err)
	}
	caps := capability.NewRegistry()
	cfg := Config{ListenPort: port, IdealPeerCount: 5}
	return New(logging.Root(), cfg, id, caps, rejectHandshake{})
}

func TestColdStartBindsListenerAndHasNoPeers(t *testing.T) {
	h := newTestHost(t, 0)
	if err := h.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	time.Sleep(20 * time.Millisecond)

	if !h.IsStarted() {
		t.Fatal("expected host to report started")
	}
	if h.ListenPort() <= 0 {
		t.Fatalf("expected a bound listen port, got %d", h.ListenPort())
	}
	if h.PeerCount() != 0 {
		t.Fatalf("expected 0 peers on cold start, got %d", h.PeerCount())
	}
}

func TestStopIsIdempotentAndDrains(t *testing.T) {
	h := newTestHost(t, 0)
	if err := h.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	h.Stop()
	if h.IsStarted() {
		t.Fatal("expected host to report stopped after Stop")
	}
	// Calling Stop again must not block or panic.
	h.Stop()
}

func TestAddNodeWarnsOutsideConventionalPortRangeButStillTracksPeer(t *testing.T) {
	h := newTestHost(t, 0)
	var logBuf bytes.Buffer
	h.log.SetHandler(logging.NewPlainHandler(&logBuf))
	id := peer.ID{7}
	h.AddNode(id, "203.0.113.5", 40404, 40404)
	if !strings.Contains(logBuf.String(), "outside the conventional range") {
		t.Fatalf("expected a port-range warning, got log %q", logBuf.String())
	}
	if _, ok := h.table.Get(id); !ok {
		t.Fatal("expected AddNode to register the peer regardless of the port warning")
	}
}

func TestAddNodeResolvesHostnameAsynchronously(t *testing.T) {
	h := newTestHost(t, 0)
	h.resolver = fakeResolver{ips: []net.IP{net.ParseIP("203.0.113.20")}}
	id := peer.ID{9}
	h.AddNode(id, "example.invalid", 30303, 30303)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.table.Get(id); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected the hostname to resolve asynchronously and register the peer")
}

func TestAddNodeDedupesConcurrentResolutionsByNodeID(t *testing.T) {
	h := newTestHost(t, 0)
	res := &countingResolver{ips: []net.IP{net.ParseIP("203.0.113.21")}}
	h.resolver = res
	id := peer.ID{11}
	h.AddNode(id, "dup.invalid", 30303, 30303)
	h.AddNode(id, "dup.invalid", 30303, 30303)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.table.Get(id); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	res.mu.Lock()
	calls := res.calls
	res.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one resolution in flight for a duplicate AddNode, got %d", calls)
	}
}

func TestListenAddressPopulatedAfterStart(t *testing.T) {
	h := newTestHost(t, 0)
	if err := h.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	time.Sleep(20 * time.Millisecond)

	if h.ListenAddress() == nil {
		t.Fatal("expected a resolved listen address after Start")
	}
}

func TestPeerCountSurvivesGCWhileSessionOpen(t *testing.T) {
	store := &identity.MemStore{}
	id, err := identity.Load(store)
	if err != nil {
		t.Fatalf("identity.Load: %v", err)
	}
	caps := capability.NewRegistry()
	cfg := Config{ListenPort: 0, IdealPeerCount: 5}
	h := New(logging.Root(), cfg, id, caps, acceptingHandshake{})
	if err := h.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", h.ListenPort()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && h.PeerCount() != 1 {
		time.Sleep(5 * time.Millisecond)
	}
	if h.PeerCount() != 1 {
		t.Fatalf("expected the inbound session to register, got %d peers", h.PeerCount())
	}

	runtime.GC()
	runtime.GC()

	if h.PeerCount() != 1 {
		t.Fatalf("expected the still-open session to survive GC, got %d peers", h.PeerCount())
	}
}
