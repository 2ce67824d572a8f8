package peer

import "sync"

// Table is the owning map of node id to Peer. It is the single source
// of truth Host consults before dialing or accepting.
type Table struct {
	mu    sync.RWMutex
	peers map[ID]*Peer
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{peers: make(map[ID]*Peer)}
}

// GetOrCreate returns the existing Peer for id, or creates and inserts
// one for n if none exists yet.
func (t *Table) GetOrCreate(n Node) *Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[n.ID]; ok {
		return p
	}
	p := New(n)
	t.peers[n.ID] = p
	return p
}

// Get returns the Peer for id, if known.
func (t *Table) Get(id ID) (*Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	return p, ok
}

// Remove deletes the peer entry for id.
func (t *Table) Remove(id ID) {
	t.mu.Lock()
	delete(t.peers, id)
	t.mu.Unlock()
}

// Len returns the number of known peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// All returns a snapshot slice of every known peer.
func (t *Table) All() []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Range calls fn for every peer, stopping early if fn returns false.
// fn must not call back into the Table.
func (t *Table) Range(fn func(*Peer) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.peers {
		if !fn(p) {
			return
		}
	}
}
