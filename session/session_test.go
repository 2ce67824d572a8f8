package session

import (
	"time"

	"testing"

	"github.com/veriumnet/meshhost/capability"
	"github.com/veriumnet/meshhost/peer"
)

type fakeHandle struct {
	id   peer.ID
	p    *peer.Peer
	open bool
	last time.Time
}

func (f *fakeHandle) NodeID() peer.ID                          { return f.id }
func (f *fakeHandle) Peer() *peer.Peer                         { return f.p }
func (f *fakeHandle) Open() bool                                { return f.open }
func (f *fakeHandle) LastReceived() time.Time                   { return f.last }
func (f *fakeHandle) Ping()                                     {}
func (f *fakeHandle) Disconnect(peer.DisconnectReason)          { f.open = false }
func (f *fakeHandle) ServiceNodesRequest()                      {}
func (f *fakeHandle) Bind(bindings []capability.Binding)        {}

func TestRegistryLookupUpgradesLiveSession(t *testing.T) {
	r := NewRegistry()
	id := peer.ID{1}
	h := Handle(&fakeHandle{id: id, p: peer.New(peer.Node{ID: id}), open: true})

	r.Register(id, &h)

	got, ok := r.Lookup(id)
	if !ok {
		t.Fatal("expected lookup to succeed for a live session")
	}
	if got.NodeID() != id {
		t.Fatalf("node id mismatch: got %v, want %v", got.NodeID(), id)
	}
}

func TestRegistryLookupFailsOnceClosed(t *testing.T) {
	r := NewRegistry()
	id := peer.ID{2}
	fh := &fakeHandle{id: id, p: peer.New(peer.Node{ID: id}), open: true}
	h := Handle(fh)
	r.Register(id, &h)

	fh.open = false

	if _, ok := r.Lookup(id); ok {
		t.Fatal("expected lookup to fail once the session reports closed")
	}
}

func TestRegistryLookupUnknownID(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup(peer.ID{99}); ok {
		t.Fatal("expected lookup of an unregistered id to fail")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	id := peer.ID{3}
	fh := &fakeHandle{id: id, p: peer.New(peer.Node{ID: id}), open: true}
	h := Handle(fh)
	r.Register(id, &h)
	r.Remove(id)
	if _, ok := r.Lookup(id); ok {
		t.Fatal("expected lookup to fail after Remove")
	}
}
