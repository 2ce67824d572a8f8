// Package session implements the live-session registry: weak
// references to established sessions keyed by node id, so a Peer that
// outlives its session simply becomes unreachable rather than dangling.
package session

import (
	"sync"
	"time"
	"weak"

	"github.com/veriumnet/meshhost/capability"
	"github.com/veriumnet/meshhost/peer"
)

// Handle is what Host needs from a live session: enough to multiplex
// capabilities onto it, ping it, and tear it down. The wire handshake
// that produces a Handle is an external collaborator.
type Handle interface {
	NodeID() peer.ID
	Peer() *peer.Peer
	Open() bool
	LastReceived() time.Time
	Ping()
	Disconnect(reason peer.DisconnectReason)
	// ServiceNodesRequest is called once per scheduler tick to let the
	// session pump any outbound requests it owns.
	ServiceNodesRequest()
	// Bind attaches the capability instances negotiated for this
	// session; called once, right after handshake.
	Bind(bindings []capability.Binding)
}

// Registry holds a weak reference to every live session, keyed by node
// id. Reads that fail to upgrade are treated as "peer is offline".
type Registry struct {
	mu       sync.Mutex
	sessions map[peer.ID]weak.Pointer[Handle]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[peer.ID]weak.Pointer[Handle])}
}

// Register stores a weak reference to h. The registry never holds a
// strong reference itself: the caller must keep h reachable for as long
// as the session should count as live, typically via a dedicated
// goroutine that outlives the call that registers it.
func (r *Registry) Register(id peer.ID, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = weak.Make(h)
}

// Lookup upgrades the weak reference for id. ok is false if the id is
// unknown or the session has already been collected/closed.
func (r *Registry) Lookup(id peer.ID) (h Handle, ok bool) {
	r.mu.Lock()
	ref, present := r.sessions[id]
	r.mu.Unlock()
	if !present {
		return nil, false
	}
	p := ref.Value()
	if p == nil || *p == nil || !(*p).Open() {
		return nil, false
	}
	return *p, true
}

// Remove deletes the registry entry for id outright, used once a
// session's disconnect has fully completed.
func (r *Registry) Remove(id peer.ID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep drops entries whose weak reference can no longer be upgraded,
// keeping the map from growing unboundedly with dead entries. It is
// called opportunistically from the scheduler tick, not on every
// lookup.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ref := range r.sessions {
		p := ref.Value()
		if p == nil || *p == nil || !(*p).Open() {
			delete(r.sessions, id)
		}
	}
}

// Range calls fn for every session that is still upgradeable and open.
// fn must not call back into the Registry.
func (r *Registry) Range(fn func(peer.ID, Handle) bool) {
	r.mu.Lock()
	type entry struct {
		id peer.ID
		h  Handle
	}
	var live []entry
	for id, ref := range r.sessions {
		p := ref.Value()
		if p == nil || *p == nil || !(*p).Open() {
			continue
		}
		live = append(live, entry{id, *p})
	}
	r.mu.Unlock()
	for _, e := range live {
		if !fn(e.id, e.h) {
			return
		}
	}
}

// Len returns the number of upgradeable, open sessions.
func (r *Registry) Len() int {
	n := 0
	r.Range(func(peer.ID, Handle) bool { n++; return true })
	return n
}
