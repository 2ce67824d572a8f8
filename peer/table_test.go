package peer

import "testing"

func TestTableGetOrCreateIsIdempotent(t *testing.T) {
	table := NewTable()
	n := Node{ID: ID{1}}
	p1 := table.GetOrCreate(n)
	p2 := table.GetOrCreate(n)
	if p1 != p2 {
		t.Fatal("expected the same *Peer for the same node id")
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 peer, got %d", table.Len())
	}
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	n := Node{ID: ID{2}}
	table.GetOrCreate(n)
	table.Remove(n.ID)
	if _, ok := table.Get(n.ID); ok {
		t.Fatal("expected peer to be removed")
	}
}
