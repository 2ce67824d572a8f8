// Package capability implements the versioned sub-protocol registry a
// session binds against once a handshake has agreed which capabilities
// both ends support.
package capability

import (
	"fmt"
	"sort"
	"sync"
)

// UserPacketBase is the first message id available to capabilities; ids
// below it are reserved for the transport's own control messages (disc,
// ping, pong).
const UserPacketBase = 0x10

// Descriptor identifies a capability by name and version. Two
// descriptors with the same Name but different Version are distinct
// capabilities that may both be registered and offered.
type Descriptor struct {
	Name    string // 3-byte ASCII tag
	Version uint8
}

func (d Descriptor) String() string { return fmt.Sprintf("%s/%d", d.Name, d.Version) }

// Less orders descriptors by name then version, the order the registry
// assigns message-id offsets in.
func (d Descriptor) Less(o Descriptor) bool {
	if d.Name != o.Name {
		return d.Name < o.Name
	}
	return d.Version < o.Version
}

// SessionHandle is the narrow slice of a session a capability instance
// needs: sending a framed message under its own id offset and reading
// back messages routed to it.
type SessionHandle interface {
	Send(code uint64, payload []byte) error
	PeerID() [64]byte
}

// Instance is a capability bound to one live session.
type Instance interface {
	// HandleMsg is invoked for every inbound message whose code falls
	// within this instance's assigned id range, with code already
	// rebased to zero.
	HandleMsg(code uint64, payload []byte) error
	// Close releases any resources the instance holds when the
	// session it is bound to goes away.
	Close()
}

// Plugin is a registrable capability implementation.
type Plugin interface {
	Descriptor() Descriptor
	// MessageCount is the number of message ids this capability
	// occupies starting at its assigned base.
	MessageCount() uint64
	// NewInstance constructs a per-session instance once a session
	// has negotiated this capability, given the base message id
	// assigned to it for that session.
	NewInstance(session SessionHandle, base uint64) Instance
	// OnStarting/OnStopping are lifecycle hooks invoked once when the
	// owning host starts and stops, not per-session.
	OnStarting()
	OnStopping()
}

// Binding is one negotiated capability's assigned id range within a
// session.
type Binding struct {
	Plugin Plugin
	Base   uint64
}

// Registry holds the set of capabilities a host will offer to peers. It
// must be fully populated before the host starts; Freeze then forbids
// further registration.
type Registry struct {
	mu      sync.Mutex
	plugins map[Descriptor]Plugin
	frozen  bool
}

// NewRegistry returns an empty, mutable Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[Descriptor]Plugin)}
}

// Register adds a plugin. It panics if called after Freeze, matching the
// "not thread-safe, populate before start" contract: a capability
// appearing after start is a programming error, not a runtime condition
// to handle gracefully.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("capability: Register called after Freeze")
	}
	r.plugins[p.Descriptor()] = p
}

// Freeze forbids further registration and returns the descriptors in
// the fixed order Bind will use to assign offsets.
func (r *Registry) Freeze() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	descs := make([]Descriptor, 0, len(r.plugins))
	for d := range r.plugins {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Less(descs[j]) })
	return descs
}

// OnStarting invokes every plugin's startup hook. Call once, after
// Freeze, before accepting or dialing.
func (r *Registry) OnStarting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plugins {
		p.OnStarting()
	}
}

// OnStopping invokes every plugin's shutdown hook.
func (r *Registry) OnStopping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plugins {
		p.OnStopping()
	}
}

// Bind negotiates the capabilities both sides advertise. It sorts shared
// in place into Freeze's order, skips any descriptor not registered here,
// and returns the remaining bindings with contiguous base ids starting at
// UserPacketBase.
func (r *Registry) Bind(shared []Descriptor) []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(shared, func(i, j int) bool { return shared[i].Less(shared[j]) })
	bindings := make([]Binding, 0, len(shared))
	base := uint64(UserPacketBase)
	for _, d := range shared {
		p, ok := r.plugins[d]
		if !ok {
			continue
		}
		bindings = append(bindings, Binding{Plugin: p, Base: base})
		base += p.MessageCount()
	}
	return bindings
}

// Offered returns the descriptors currently registered, for use in a
// handshake's capability advertisement.
func (r *Registry) Offered() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	descs := make([]Descriptor, 0, len(r.plugins))
	for d := range r.plugins {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Less(descs[j]) })
	return descs
}
